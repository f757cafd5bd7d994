// Package ledger derives summary statistics from an asset's transaction log.
//
// Aggregation replays the full log in append order and never mutates it.
// Blank or malformed numeric cells in historical rows count as zero.
package ledger

import (
	"strconv"
	"strings"

	"fuelbot/internal/record"
)

// VehicleStats is the derived state of one vehicle's fuel stock.
type VehicleStats struct {
	Purchased    float64
	Consumed     float64
	Balance      float64
	AvgPrice     float64
	LastOdometer int
}

// Vehicle replays a vehicle table's data rows.
func Vehicle(rows [][]string) VehicleStats {
	var s VehicleStats
	var totalCost float64

	for _, row := range rows {
		switch cell(row, record.VehicleColKind) {
		case record.KindPurchase:
			volume := cellFloat(row, record.VehicleColVolume)
			price := cellFloat(row, record.VehicleColUnitPrice)
			s.Purchased += volume
			totalCost += volume * price
		case record.KindRefuel:
			s.Consumed += cellFloat(row, record.VehicleColVolume)
			s.LastOdometer = cellInt(row, record.VehicleColOdometer)
		}
	}

	s.Balance = s.Purchased - s.Consumed
	if s.Purchased > 0 {
		s.AvgPrice = totalCost / s.Purchased
	}
	return s
}

// GeneratorStats is the derived state of one generator.
type GeneratorStats struct {
	TotalVolume     float64
	TotalCost       float64
	LastEngineHours int
}

// Generator replays a generator table's data rows.
func Generator(rows [][]string) GeneratorStats {
	var s GeneratorStats
	for _, row := range rows {
		s.TotalVolume += cellFloat(row, record.GeneratorColVolume)
		s.TotalCost += cellFloat(row, record.GeneratorColTotalCost)
		s.LastEngineHours = cellInt(row, record.GeneratorColHours)
	}
	return s
}

// LastN returns up to n most recent rows, most recent first.
func LastN(rows [][]string, n int) [][]string {
	if len(rows) < n {
		n = len(rows)
	}
	out := make([][]string, 0, n)
	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		out = append(out, rows[i])
	}
	return out
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func cellFloat(row []string, col int) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell(row, col), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func cellInt(row []string, col int) int {
	v, err := strconv.Atoi(cell(row, col))
	if err != nil {
		return int(cellFloat(row, col))
	}
	return v
}
