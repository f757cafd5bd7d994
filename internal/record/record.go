// Package record serializes validated transactions into backend table rows.
//
// It owns the per-kind table schema: column order, header strings and the
// operation-kind cell values. Other packages address row cells through the
// column constants defined here.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fuelbot/internal/parse"
	"fuelbot/internal/store"
)

// Vehicle table columns (0-based).
const (
	VehicleColDate = iota
	VehicleColKind
	VehicleColVolume
	VehicleColUnitPrice
	VehicleColTotalCost
	VehicleColOdometer
	VehicleColUser
	VehicleColPhoto
)

// Generator table columns (0-based).
const (
	GeneratorColDate = iota
	GeneratorColVolume
	GeneratorColUnitPrice
	GeneratorColTotalCost
	GeneratorColHours
	GeneratorColUser
	GeneratorColPhoto
)

// Operation-kind cell values in the vehicle table. Kept byte-identical to the
// historical data so old rows keep aggregating.
const (
	KindPurchase = "Закупка"
	KindRefuel   = "Заправка"
)

// VehicleHeaders is the header row of a vehicle table.
var VehicleHeaders = []string{
	"Дата", "Тип операції", "Об'єм (л)", "Ціна за літр",
	"Загальна вартість", "Пробіг", "Користувач", "Фото",
}

// GeneratorHeaders is the header row of a generator table.
var GeneratorHeaders = []string{
	"Дата", "Об'єм (л)", "Ціна за літр", "Загальна вартість",
	"Моточаси", "Користувач", "Фото",
}

// TimeLayout is the timestamp format written to the date column.
const TimeLayout = "2006-01-02 15:04:05"

const photoLabel = "Фото чека"

// Writer appends transactions as rows and patches the photo cell with a
// display-friendly hyperlink.
type Writer struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Writer over the given store.
func New(st store.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: st, logger: logger, now: time.Now}
}

// AppendPurchase writes one purchase row to the vehicle table.
func (w *Writer) AppendPurchase(ctx context.Context, table string, p parse.Purchase, user, photoURL string) (int, error) {
	row := []string{
		w.now().Format(TimeLayout),
		KindPurchase,
		formatNum(p.Volume),
		formatNum(p.UnitPrice),
		formatNum(p.TotalCost()),
		"", // odometer not applicable
		user,
		photoURL,
	}
	return w.append(ctx, table, VehicleHeaders, row, photoURL, VehicleColPhoto+1)
}

// AppendVehicleRefuel writes one refuel row to the vehicle table.
func (w *Writer) AppendVehicleRefuel(ctx context.Context, table string, r parse.VehicleRefuel, user, photoURL string) (int, error) {
	row := []string{
		w.now().Format(TimeLayout),
		KindRefuel,
		formatNum(r.Volume),
		"", // price not applicable
		"", // total cost not applicable
		strconv.Itoa(r.Odometer),
		user,
		photoURL,
	}
	return w.append(ctx, table, VehicleHeaders, row, photoURL, VehicleColPhoto+1)
}

// AppendGeneratorRefuel writes one refuel row to the generator table.
func (w *Writer) AppendGeneratorRefuel(ctx context.Context, table string, r parse.GeneratorRefuel, user, photoURL string) (int, error) {
	row := []string{
		w.now().Format(TimeLayout),
		formatNum(r.Volume),
		formatNum(r.UnitPrice),
		formatNum(r.TotalCost()),
		strconv.Itoa(r.EngineHours),
		user,
		photoURL,
	}
	return w.append(ctx, table, GeneratorHeaders, row, photoURL, GeneratorColPhoto+1)
}

// append ensures the table exists, appends the row and rewrites the photo
// cell to a hyperlink. The two writes are not transactional: if the patch
// fails the row stays with the raw URL, which is valid data, so the failure
// is only logged.
func (w *Writer) append(ctx context.Context, table string, headers, row []string, photoURL string, photoCol int) (int, error) {
	if err := w.store.EnsureTable(ctx, table, headers); err != nil {
		return 0, fmt.Errorf("ensuring table %q: %w", table, err)
	}

	n, err := w.store.AppendRow(ctx, table, row)
	if err != nil {
		return 0, fmt.Errorf("appending to %q: %w", table, err)
	}

	if photoURL != "" {
		link := fmt.Sprintf(`=HYPERLINK("%s"; "%s")`, photoURL, photoLabel)
		if err := w.store.UpdateCell(ctx, table, n, photoCol, link); err != nil {
			w.logger.Warn("photo cell patch failed, row keeps raw url",
				"table", table,
				"row", n,
				"error", err,
			)
		}
	}

	return n, nil
}

// formatNum renders a number the way it was typed: no exponent, no trailing
// zeros.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
