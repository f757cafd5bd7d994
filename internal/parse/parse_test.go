package parse

import (
	"errors"
	"testing"
)

func TestPurchaseDetails(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Purchase
		example string // non-empty: expect FormatError with this example
		errMsg  string // non-empty: expect ConstraintError with this message
	}{
		{
			name: "canonical ukrainian",
			text: "200 літрів по 58 грн",
			want: Purchase{Volume: 200, UnitPrice: 58},
		},
		{
			name: "russian wording",
			text: "200 литров по 58 грн",
			want: Purchase{Volume: 200, UnitPrice: 58},
		},
		{
			name: "decimal comma in price",
			text: "150 літрів по 57,50 грн",
			want: Purchase{Volume: 150, UnitPrice: 57.5},
		},
		{
			name: "decimal point in volume",
			text: "12.5 літрів по 60 грн",
			want: Purchase{Volume: 12.5, UnitPrice: 60},
		},
		{
			name: "price marker word instead of po",
			text: "200 літрів ціна 58 грн",
			want: Purchase{Volume: 200, UnitPrice: 58},
		},
		{
			name:    "missing price",
			text:    "200 літрів",
			example: ExamplePurchase,
		},
		{
			name:    "no numbers",
			text:    "купив багато літрів",
			example: ExamplePurchase,
		},
		{
			name:    "empty",
			text:    "",
			example: ExamplePurchase,
		},
		{
			name:   "zero volume",
			text:   "0 літрів по 58 грн",
			errMsg: errVolume,
		},
		{
			name:   "zero price",
			text:   "200 літрів по 0 грн",
			errMsg: errPrice,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PurchaseDetails(tc.text)
			checkErr(t, err, tc.example, tc.errMsg)
			if err != nil {
				return
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPurchaseMessage(t *testing.T) {
	got, err := PurchaseMessage("5513 Купил 200 литров по 58 грн")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Purchase{AssetID: "5513", Volume: 200, UnitPrice: 58}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.TotalCost() != 11600 {
		t.Errorf("total cost: got %v, want 11600", got.TotalCost())
	}

	// No leading asset identifier.
	if _, err := PurchaseMessage("купив 200 літрів по 58 грн"); err == nil {
		t.Error("expected error without asset identifier")
	}
	// No purchase keyword.
	if _, err := PurchaseMessage("5513 200 літрів по 58 грн"); err == nil {
		t.Error("expected error without purchase keyword")
	}
}

func TestVehicleRefuelDetails(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    VehicleRefuel
		example string
		errMsg  string
	}{
		{
			name: "canonical",
			text: "30 літрів. Пробіг: 125000 км",
			want: VehicleRefuel{Volume: 30, Odometer: 125000},
		},
		{
			name: "russian odometer word",
			text: "30 литров. Пробег 125000 км",
			want: VehicleRefuel{Volume: 30, Odometer: 125000},
		},
		{
			name:    "odometer keyword missing",
			text:    "30 літрів 125000 км",
			example: ExampleVehicleRefuel,
		},
		{
			name:   "fractional odometer",
			text:   "30 літрів. Пробіг: 125,5 км",
			errMsg: errOdometerInt,
		},
		{
			name:   "zero volume",
			text:   "0 літрів. Пробіг: 125000 км",
			errMsg: errVolume,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := VehicleRefuelDetails(tc.text)
			checkErr(t, err, tc.example, tc.errMsg)
			if err != nil {
				return
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestVehicleRefuelMessage(t *testing.T) {
	got, err := VehicleRefuelMessage("5513 заправка 30 литров. Пробег: 125000 км")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := VehicleRefuel{AssetID: "5513", Volume: 30, Odometer: 125000}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// A generator fill must not match the vehicle grammar.
	if _, err := VehicleRefuelMessage("7700 заправка генератора 10 літрів, ціна 60 грн, моточаси: 255"); err == nil {
		t.Error("expected generator refuel to be rejected by vehicle grammar")
	}
}

func TestGeneratorRefuelDetails(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    GeneratorRefuel
		example string
		errMsg  string
	}{
		{
			name: "canonical",
			text: "10 літрів, ціна 60 грн, моточаси: 255",
			want: GeneratorRefuel{Volume: 10, UnitPrice: 60, EngineHours: 255},
		},
		{
			name: "russian wording",
			text: "10 литров, цена 60 грн, моточасы: 255",
			want: GeneratorRefuel{Volume: 10, UnitPrice: 60, EngineHours: 255},
		},
		{
			name: "decimal comma price",
			text: "10 літрів, ціна 59,90 грн, моточаси: 255",
			want: GeneratorRefuel{Volume: 10, UnitPrice: 59.9, EngineHours: 255},
		},
		{
			name:    "missing engine hours",
			text:    "10 літрів, ціна 60 грн",
			example: ExampleGeneratorRefuel,
		},
		{
			name:   "fractional engine hours",
			text:   "10 літрів, ціна 60 грн, моточаси: 255,5",
			errMsg: errHoursInt,
		},
		{
			name:   "zero price",
			text:   "10 літрів, ціна 0 грн, моточаси: 255",
			errMsg: errPrice,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GeneratorRefuelDetails(tc.text)
			checkErr(t, err, tc.example, tc.errMsg)
			if err != nil {
				return
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestGeneratorRefuelMessage(t *testing.T) {
	got, err := GeneratorRefuelMessage("7700 заправка генератора 10 літрів, ціна 60 грн, моточаси: 255")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := GeneratorRefuel{AssetID: "7700", Volume: 10, UnitPrice: 60, EngineHours: 255}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.TotalCost() != 600 {
		t.Errorf("total cost: got %v, want 600", got.TotalCost())
	}
}

// Parsing must be total: arbitrary garbage yields an error, never a panic.
func TestParsingIsTotal(t *testing.T) {
	inputs := []string{
		"", " ", "....", "літрів по грн", "9999999999999999999999 літрів по 1 грн",
		"5513", "заправка", "⛽⛽⛽", "1,2,3 літрів по 4,5,6 грн", "200літрівпо58грн",
	}
	for _, in := range inputs {
		for _, fn := range []func(string) error{
			func(s string) error { _, err := PurchaseDetails(s); return err },
			func(s string) error { _, err := PurchaseMessage(s); return err },
			func(s string) error { _, err := VehicleRefuelDetails(s); return err },
			func(s string) error { _, err := VehicleRefuelMessage(s); return err },
			func(s string) error { _, err := GeneratorRefuelDetails(s); return err },
			func(s string) error { _, err := GeneratorRefuelMessage(s); return err },
		} {
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Errorf("panic on input %q: %v", in, r)
					}
				}()
				fn(in)
			}()
		}
	}
}

func checkErr(t *testing.T, err error, example, errMsg string) {
	t.Helper()
	switch {
	case example != "":
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FormatError, got %v", err)
		}
		if fe.Example != example {
			t.Errorf("example: got %q, want %q", fe.Example, example)
		}
	case errMsg != "":
		var ce *ConstraintError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConstraintError, got %v", err)
		}
		if ce.Msg != errMsg {
			t.Errorf("message: got %q, want %q", ce.Msg, errMsg)
		}
	default:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
