package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"fuelbot/internal/fleet"
	"fuelbot/internal/record"
	"fuelbot/internal/session"
	"fuelbot/internal/store/memory"
)

const testUser int64 = 42

type fixture struct {
	store   *memory.Store
	handler *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	st.AddTable("Авто 5513", record.VehicleHeaders)
	st.AddTable("Генератор 7700", record.GeneratorHeaders)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := fleet.NewRegistry(st, time.Minute, logger)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("registry refresh: %v", err)
	}

	h := NewHandler(session.NewStore(), reg, record.New(st, logger), st, logger)
	return &fixture{store: st, handler: h}
}

func (f *fixture) text(t *testing.T, text string) string {
	t.Helper()
	return f.send(t, Event{UserID: testUser, User: "vasyl", Text: text})
}

func (f *fixture) photo(t *testing.T, text string) string {
	t.Helper()
	return f.send(t, Event{UserID: testUser, User: "vasyl", Text: text, PhotoURL: "https://files.example/receipt.jpg"})
}

func (f *fixture) command(t *testing.T, cmd string, args ...string) string {
	t.Helper()
	return f.send(t, Event{UserID: testUser, User: "vasyl", Command: cmd, Args: args})
}

func (f *fixture) send(t *testing.T, ev Event) string {
	t.Helper()
	rs := f.handler.Handle(context.Background(), ev)
	if len(rs) != 1 {
		t.Fatalf("got %d replies, want 1: %v", len(rs), rs)
	}
	return rs[0].Text
}

func TestGuidedPurchase(t *testing.T) {
	f := newFixture(t)

	if r := f.text(t, ButtonPurchase); !strings.Contains(r, "номер автомобіля") {
		t.Errorf("asset prompt: %q", r)
	}
	if r := f.text(t, "5513"); !strings.Contains(r, "200 літрів по 58 грн") {
		t.Errorf("details prompt: %q", r)
	}

	r := f.photo(t, "200 літрів по 58 грн")
	if !strings.Contains(r, "✅") || !strings.Contains(r, "11600 грн") {
		t.Errorf("confirmation: %q", r)
	}

	if n := f.store.RowCount("Авто 5513"); n != 2 {
		t.Fatalf("rows after purchase: got %d, want 2", n)
	}
	if got := f.store.Cell("Авто 5513", 2, record.VehicleColKind+1); got != record.KindPurchase {
		t.Errorf("kind cell: %q", got)
	}
	if got := f.store.Cell("Авто 5513", 2, record.VehicleColVolume+1); got != "200" {
		t.Errorf("volume cell: %q", got)
	}
	if got := f.store.Cell("Авто 5513", 2, record.VehicleColTotalCost+1); got != "11600" {
		t.Errorf("total cost cell: %q", got)
	}
	if got := f.store.Cell("Авто 5513", 2, record.VehicleColPhoto+1); !strings.Contains(got, "HYPERLINK") {
		t.Errorf("photo cell not patched: %q", got)
	}

	// Session completed: the same detail text is now free-form and unmatched.
	if r := f.photo(t, "200 літрів по 58 грн"); !strings.Contains(r, "Не вдалося розпізнати") {
		t.Errorf("after completion: %q", r)
	}
}

func TestFreeFormVehicleRefuel(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable("Авто 5513",
		record.VehicleHeaders,
		[]string{"2025-01-01 10:00:00", "Закупка", "200", "58", "11600", "", "vasyl", ""},
	)

	r := f.photo(t, "5513 заправка 30 літрів. Пробіг: 125000 км")
	if !strings.Contains(r, "Пробіг: 125000 км") {
		t.Errorf("confirmation: %q", r)
	}
	if !strings.Contains(r, "Залишок на складі: 170.0 л") {
		t.Errorf("balance read-back: %q", r)
	}
	if n := f.store.RowCount("Авто 5513"); n != 3 {
		t.Errorf("rows: got %d, want 3", n)
	}
}

func TestFreeFormGeneratorRefuel(t *testing.T) {
	f := newFixture(t)

	r := f.photo(t, "7700 заправка генератора 10 літрів, ціна 60 грн, моточаси: 255")
	if !strings.Contains(r, "Генератор 7700") || !strings.Contains(r, "Моточаси: 255") {
		t.Errorf("confirmation: %q", r)
	}
	if n := f.store.RowCount("Генератор 7700"); n != 2 {
		t.Errorf("rows: got %d, want 2", n)
	}
	if n := f.store.RowCount("Авто 5513"); n != 1 {
		t.Errorf("vehicle table touched: %d rows", n)
	}
}

func TestGuidedUnknownAsset(t *testing.T) {
	f := newFixture(t)

	f.text(t, ButtonPurchase)
	r := f.text(t, "9999")
	if !strings.Contains(r, "9999 не підтримується") || !strings.Contains(r, "5513") {
		t.Errorf("unknown asset reply: %q", r)
	}

	// Step did not advance: a valid identifier still works.
	if r := f.text(t, "5513"); !strings.Contains(r, "200 літрів по 58 грн") {
		t.Errorf("retry after unknown asset: %q", r)
	}
}

func TestMissingPhoto(t *testing.T) {
	f := newFixture(t)

	f.text(t, ButtonVehicleRefuel)
	f.text(t, "5513")

	if r := f.text(t, "30 літрів. Пробіг: 125000 км"); !strings.Contains(r, "Фото чека обов'язкове") {
		t.Errorf("missing photo reply: %q", r)
	}
	if n := f.store.RowCount("Авто 5513"); n != 1 {
		t.Errorf("row written without photo: %d rows", n)
	}

	// Session survived: the same message with a photo completes the flow.
	if r := f.photo(t, "30 літрів. Пробіг: 125000 км"); !strings.Contains(r, "✅") {
		t.Errorf("retry with photo: %q", r)
	}
	if n := f.store.RowCount("Авто 5513"); n != 2 {
		t.Errorf("rows after retry: got %d, want 2", n)
	}
}

func TestMissingPhotoFreeForm(t *testing.T) {
	f := newFixture(t)

	if r := f.text(t, "5513 купив 200 літрів по 58 грн"); !strings.Contains(r, "Фото чека обов'язкове") {
		t.Errorf("missing photo reply: %q", r)
	}
	if n := f.store.RowCount("Авто 5513"); n != 1 {
		t.Errorf("row written without photo: %d rows", n)
	}
}

func TestCancellationMidFlow(t *testing.T) {
	f := newFixture(t)

	f.text(t, ButtonPurchase)
	f.text(t, "5513")

	for _, token := range []string{"cancel", "Отмена", "СКАСУВАТИ", "/cancel"} {
		t.Run(token, func(t *testing.T) {
			ff := newFixture(t)
			ff.text(t, ButtonPurchase)
			ff.text(t, "5513")
			if r := ff.text(t, token); r != replyCanceled {
				t.Errorf("cancel ack: %q", r)
			}
			// A following detail message hits the free-form path.
			if r := ff.photo(t, "200 літрів по 58 грн"); !strings.Contains(r, "Не вдалося розпізнати") {
				t.Errorf("after cancel: %q", r)
			}
		})
	}

	// Cancellation with no session is silent.
	if r := f.text(t, "cancel"); r != replyCanceled {
		t.Errorf("cancel ack: %q", r)
	}
	if rs := f.handler.Handle(context.Background(), Event{UserID: testUser, Text: "cancel"}); rs != nil {
		t.Errorf("cancel without session: %v", rs)
	}
}

func TestGeneratorHistoryLastFive(t *testing.T) {
	f := newFixture(t)
	rows := [][]string{record.GeneratorHeaders}
	for i := 1; i <= 7; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("2025-01-%02d 09:00:00", i), "10", "60", "600", fmt.Sprintf("%d", 100+i), "vasyl", "",
		})
	}
	f.store.AddTable("Генератор 7700", rows...)

	r := f.command(t, "history", "7700")
	for _, day := range []string{"2025-01-07", "2025-01-06", "2025-01-05", "2025-01-04", "2025-01-03"} {
		if !strings.Contains(r, day) {
			t.Errorf("history misses %s: %q", day, r)
		}
	}
	for _, day := range []string{"2025-01-01", "2025-01-02"} {
		if strings.Contains(r, day) {
			t.Errorf("history includes dropped %s", day)
		}
	}
	// Most recent first.
	if strings.Index(r, "2025-01-07") > strings.Index(r, "2025-01-06") {
		t.Errorf("history not in reverse order: %q", r)
	}
}

func TestGeneratorHistoryFewerThanFive(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable("Генератор 7700",
		record.GeneratorHeaders,
		[]string{"2025-01-01 09:00:00", "10", "60", "600", "101", "vasyl", ""},
		[]string{"2025-01-02 09:00:00", "12", "61", "732", "105", "vasyl", ""},
	)

	r := f.command(t, "history", "7700")
	if !strings.Contains(r, "2025-01-01") || !strings.Contains(r, "2025-01-02") {
		t.Errorf("short history incomplete: %q", r)
	}
	if strings.Index(r, "2025-01-02") > strings.Index(r, "2025-01-01") {
		t.Errorf("short history not in reverse order: %q", r)
	}
}

func TestBalanceCommand(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable("Авто 5513",
		record.VehicleHeaders,
		[]string{"2025-01-01 10:00:00", "Закупка", "200", "58", "11600", "", "vasyl", ""},
		[]string{"2025-01-02 08:00:00", "Заправка", "30", "", "", "125000", "vasyl", ""},
	)

	r := f.command(t, "balance", "5513")
	for _, want := range []string{"Закуплено: 200.0 л", "Витрачено: 30.0 л", "Залишок: 170.0 л", "Середня ціна: 58.00", "125000 км"} {
		if !strings.Contains(r, want) {
			t.Errorf("balance reply misses %q: %q", want, r)
		}
	}
}

func TestBalanceNoData(t *testing.T) {
	f := newFixture(t)
	if r := f.command(t, "balance", "5513"); !strings.Contains(r, "Немає даних") {
		t.Errorf("empty log reply: %q", r)
	}
}

func TestGeneratorInfoCommand(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable("Генератор 7700",
		record.GeneratorHeaders,
		[]string{"2025-01-01 09:00:00", "10", "60", "600", "101", "vasyl", ""},
		[]string{"2025-01-02 09:00:00", "12", "61", "732", "105", "vasyl", ""},
	)

	r := f.command(t, "generator", "7700")
	for _, want := range []string{"Загальний об'єм: 22.0 л", "Загальна вартість: 1332.00 грн", "Останні моточаси: 105"} {
		if !strings.Contains(r, want) {
			t.Errorf("generator info misses %q: %q", want, r)
		}
	}
}

func TestCommandUsageHints(t *testing.T) {
	f := newFixture(t)
	for cmd, want := range map[string]string{
		"balance":   "/balance 5513",
		"generator": "/generator 5513",
		"history":   "/history 5513",
	} {
		if r := f.command(t, cmd); !strings.Contains(r, want) {
			t.Errorf("%s usage hint: %q", cmd, r)
		}
	}
}

func TestStartListsAssets(t *testing.T) {
	f := newFixture(t)
	rs := f.handler.Handle(context.Background(), Event{UserID: testUser, Command: "start"})
	if len(rs) != 1 || !rs[0].Keyboard {
		t.Fatalf("start reply: %v", rs)
	}
	if !strings.Contains(rs[0].Text, "Авто 5513") || !strings.Contains(rs[0].Text, "Генератор 7700") {
		t.Errorf("welcome misses assets: %q", rs[0].Text)
	}
}

func TestConstraintErrorFreeForm(t *testing.T) {
	f := newFixture(t)
	if r := f.photo(t, "5513 купив 0 літрів по 58 грн"); !strings.Contains(r, "Об'єм повинен бути більше 0") {
		t.Errorf("constraint reply: %q", r)
	}
	if n := f.store.RowCount("Авто 5513"); n != 1 {
		t.Errorf("row written on constraint error: %d rows", n)
	}
}

func TestFreeFormUnknownAsset(t *testing.T) {
	f := newFixture(t)
	r := f.photo(t, "9999 купив 200 літрів по 58 грн")
	if !strings.Contains(r, "9999 не підтримується") || !strings.Contains(r, "5513") {
		t.Errorf("unknown asset reply: %q", r)
	}

	// Registry membership is checked before domain constraints.
	r = f.photo(t, "9999 купив 0 літрів по 58 грн")
	if !strings.Contains(r, "не підтримується") {
		t.Errorf("registry check should precede constraint check: %q", r)
	}
}

func TestNewActionOverwritesSession(t *testing.T) {
	f := newFixture(t)
	f.text(t, ButtonPurchase)
	f.text(t, "5513")
	// Selecting another action replaces the half-done purchase silently.
	f.text(t, ButtonVehicleRefuel)
	f.text(t, "5513")
	if r := f.photo(t, "30 літрів. Пробіг: 125000 км"); !strings.Contains(r, "Заправка 30 л") {
		t.Errorf("refuel after overwrite: %q", r)
	}
}

// failingAppend wraps the memory store to fail every append.
type failingAppend struct {
	*memory.Store
}

func (f failingAppend) AppendRow(ctx context.Context, title string, row []string) (int, error) {
	return 0, fmt.Errorf("backend unavailable")
}

func TestBackendFailureDiscardsSession(t *testing.T) {
	base := memory.New()
	base.AddTable("Авто 5513", record.VehicleHeaders)
	st := failingAppend{base}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := fleet.NewRegistry(st, time.Minute, logger)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("registry refresh: %v", err)
	}
	h := NewHandler(session.NewStore(), reg, record.New(st, logger), st, logger)
	f := &fixture{store: base, handler: h}

	f.text(t, ButtonPurchase)
	f.text(t, "5513")
	if r := f.photo(t, "200 літрів по 58 грн"); !strings.Contains(r, "зверніться до адміністратора") {
		t.Errorf("backend failure reply: %q", r)
	}

	// Session is gone: the next message takes the free-form path.
	if r := f.photo(t, "200 літрів по 58 грн"); !strings.Contains(r, "Не вдалося розпізнати") {
		t.Errorf("session kept after backend failure: %q", r)
	}
}
