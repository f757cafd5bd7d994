// Package parse turns free-text fuel messages into structured intents.
//
// There are three grammars, one per transaction variant. Each grammar works
// over a token stream (numbers and lowercased words) instead of regex
// fallback chains, so a message either yields exactly one intent or a typed
// error. Keyword anchors accept both Ukrainian and Russian forms; decimal
// fractions accept "." and ",".
package parse

import (
	"strconv"
	"strings"
	"unicode"
)

// Canonical input examples, shown verbatim to the user on a format error.
const (
	ExamplePurchase        = "200 літрів по 58 грн"
	ExampleVehicleRefuel   = "30 літрів. Пробіг: 125000 км"
	ExampleGeneratorRefuel = "10 літрів, ціна 60 грн, моточаси: 255"
)

// Purchase is a fuel purchase for a vehicle's stock.
type Purchase struct {
	AssetID   string
	Volume    float64
	UnitPrice float64
}

// TotalCost is the derived purchase cost.
func (p Purchase) TotalCost() float64 { return p.Volume * p.UnitPrice }

// VehicleRefuel is fuel taken from stock into a vehicle.
type VehicleRefuel struct {
	AssetID  string
	Volume   float64
	Odometer int
}

// GeneratorRefuel is a fuel fill of a generator.
type GeneratorRefuel struct {
	AssetID     string
	Volume      float64
	UnitPrice   float64
	EngineHours int
}

// TotalCost is the derived refuel cost.
func (g GeneratorRefuel) TotalCost() float64 { return g.Volume * g.UnitPrice }

// FormatError means the text did not match the grammar. Example carries the
// canonical input for the attempted action.
type FormatError struct {
	Example string
}

func (e *FormatError) Error() string {
	return "неправильний формат, приклад: " + e.Example
}

// ConstraintError means the text parsed but a field violates a domain
// constraint. Msg is user-facing.
type ConstraintError struct {
	Msg string
}

func (e *ConstraintError) Error() string { return e.Msg }

const (
	errVolume      = "Об'єм повинен бути більше 0"
	errPrice       = "Ціна повинна бути більше 0"
	errOdometerInt = "Пробіг має бути цілим числом"
	errHoursInt    = "Моточаси мають бути цілим числом"
)

// token is one lexical unit: a number or a lowercased word.
type token struct {
	word    string // lowercased word, empty for numbers
	raw     string // original text of a number token
	num     float64
	isNum   bool
	integer bool
}

// tokenize splits text into number and word tokens. A number is digits with
// an optional single "." or "," fraction; everything that is neither letter
// nor digit separates tokens.
func tokenize(text string) []token {
	var toks []token
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		switch {
		case unicode.IsDigit(runes[i]):
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			integer := true
			if i+1 < len(runes) && (runes[i] == '.' || runes[i] == ',') && unicode.IsDigit(runes[i+1]) {
				integer = false
				i++
				for i < len(runes) && unicode.IsDigit(runes[i]) {
					i++
				}
			}
			raw := string(runes[start:i])
			num, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil {
				// Unreachable with the scan above, treat as a word.
				toks = append(toks, token{word: strings.ToLower(raw)})
				continue
			}
			toks = append(toks, token{raw: raw, num: num, isNum: true, integer: integer})
		case unicode.IsLetter(runes[i]):
			start := i
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				i++
			}
			toks = append(toks, token{word: strings.ToLower(string(runes[start:i]))})
		default:
			i++
		}
	}
	return toks
}

// Keyword anchors. Prefix matching absorbs the case endings of both
// languages (літрів/литра, закупівля/закупка, моточаси/моточасы).
var (
	purchaseWords  = []string{"купи", "закуп"}
	refuelWords    = []string{"заправ"}
	generatorWords = []string{"генератор"}
	priceWords     = []string{"ціна", "цена", "по"}
	odometerWords  = []string{"пробіг", "пробег"}
	hoursWords     = []string{"моточас"}
)

func matchesAny(tok token, prefixes []string) bool {
	if tok.isNum || tok.word == "" {
		return false
	}
	for _, p := range prefixes {
		if p == "по" {
			if tok.word == "по" {
				return true
			}
			continue
		}
		if strings.HasPrefix(tok.word, p) {
			return true
		}
	}
	return false
}

// indexAfter returns the index of the first token at or after from that
// matches any prefix, or -1.
func indexAfter(toks []token, from int, prefixes []string) int {
	for i := from; i < len(toks); i++ {
		if matchesAny(toks[i], prefixes) {
			return i
		}
	}
	return -1
}

// numberAfter returns the first number token at or after from, or -1.
func numberAfter(toks []token, from int) int {
	for i := from; i < len(toks); i++ {
		if toks[i].isNum {
			return i
		}
	}
	return -1
}

// PurchaseDetails parses the guided-flow purchase detail message
// ("200 літрів по 58 грн"). The asset is collected in a prior step, so the
// returned Purchase has an empty AssetID.
func PurchaseDetails(text string) (Purchase, error) {
	return purchaseFrom(tokenize(text), 0)
}

// PurchaseMessage parses a free-form purchase: the asset identifier leads the
// message ("5513 купив 200 літрів по 58 грн").
func PurchaseMessage(text string) (Purchase, error) {
	toks := tokenize(text)
	if len(toks) == 0 || !toks[0].isNum {
		return Purchase{}, &FormatError{Example: ExamplePurchase}
	}
	k := indexAfter(toks, 1, purchaseWords)
	if k < 0 {
		return Purchase{}, &FormatError{Example: ExamplePurchase}
	}
	// The asset identifier is kept on constraint errors too, so callers can
	// still run the registry check in its place in the validation order.
	p, err := purchaseFrom(toks, k+1)
	p.AssetID = toks[0].raw
	return p, err
}

func purchaseFrom(toks []token, from int) (Purchase, error) {
	v := numberAfter(toks, from)
	if v < 0 {
		return Purchase{}, &FormatError{Example: ExamplePurchase}
	}
	m := indexAfter(toks, v+1, priceWords)
	if m < 0 {
		return Purchase{}, &FormatError{Example: ExamplePurchase}
	}
	pr := numberAfter(toks, m+1)
	if pr < 0 {
		return Purchase{}, &FormatError{Example: ExamplePurchase}
	}
	p := Purchase{Volume: toks[v].num, UnitPrice: toks[pr].num}
	if p.Volume <= 0 {
		return p, &ConstraintError{Msg: errVolume}
	}
	if p.UnitPrice <= 0 {
		return p, &ConstraintError{Msg: errPrice}
	}
	return p, nil
}

// VehicleRefuelDetails parses the guided-flow vehicle refuel detail message
// ("30 літрів. Пробіг: 125000 км").
func VehicleRefuelDetails(text string) (VehicleRefuel, error) {
	return vehicleRefuelFrom(tokenize(text), 0)
}

// VehicleRefuelMessage parses a free-form vehicle refuel
// ("5513 заправка 30 літрів. Пробіг: 125000 км").
func VehicleRefuelMessage(text string) (VehicleRefuel, error) {
	toks := tokenize(text)
	if len(toks) == 0 || !toks[0].isNum {
		return VehicleRefuel{}, &FormatError{Example: ExampleVehicleRefuel}
	}
	k := indexAfter(toks, 1, refuelWords)
	if k < 0 {
		return VehicleRefuel{}, &FormatError{Example: ExampleVehicleRefuel}
	}
	// "заправка генератора ..." belongs to the generator grammar.
	if k+1 < len(toks) && matchesAny(toks[k+1], generatorWords) {
		return VehicleRefuel{}, &FormatError{Example: ExampleVehicleRefuel}
	}
	r, err := vehicleRefuelFrom(toks, k+1)
	r.AssetID = toks[0].raw
	return r, err
}

func vehicleRefuelFrom(toks []token, from int) (VehicleRefuel, error) {
	v := numberAfter(toks, from)
	if v < 0 {
		return VehicleRefuel{}, &FormatError{Example: ExampleVehicleRefuel}
	}
	m := indexAfter(toks, v+1, odometerWords)
	if m < 0 {
		return VehicleRefuel{}, &FormatError{Example: ExampleVehicleRefuel}
	}
	o := numberAfter(toks, m+1)
	if o < 0 {
		return VehicleRefuel{}, &FormatError{Example: ExampleVehicleRefuel}
	}
	r := VehicleRefuel{Volume: toks[v].num, Odometer: int(toks[o].num)}
	if r.Volume <= 0 {
		return r, &ConstraintError{Msg: errVolume}
	}
	if !toks[o].integer {
		return r, &ConstraintError{Msg: errOdometerInt}
	}
	return r, nil
}

// GeneratorRefuelDetails parses the guided-flow generator refuel detail
// message ("10 літрів, ціна 60 грн, моточаси: 255").
func GeneratorRefuelDetails(text string) (GeneratorRefuel, error) {
	return generatorRefuelFrom(tokenize(text), 0)
}

// GeneratorRefuelMessage parses a free-form generator refuel
// ("7700 заправка генератора 10 літрів, ціна 60 грн, моточаси: 255").
func GeneratorRefuelMessage(text string) (GeneratorRefuel, error) {
	toks := tokenize(text)
	if len(toks) == 0 || !toks[0].isNum {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	g := indexAfter(toks, 1, generatorWords)
	if g < 0 {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	r, err := generatorRefuelFrom(toks, g+1)
	r.AssetID = toks[0].raw
	return r, err
}

func generatorRefuelFrom(toks []token, from int) (GeneratorRefuel, error) {
	v := numberAfter(toks, from)
	if v < 0 {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	pm := indexAfter(toks, v+1, priceWords)
	if pm < 0 {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	pr := numberAfter(toks, pm+1)
	if pr < 0 {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	hm := indexAfter(toks, pr+1, hoursWords)
	if hm < 0 {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	h := numberAfter(toks, hm+1)
	if h < 0 {
		return GeneratorRefuel{}, &FormatError{Example: ExampleGeneratorRefuel}
	}
	r := GeneratorRefuel{Volume: toks[v].num, UnitPrice: toks[pr].num, EngineHours: int(toks[h].num)}
	if r.Volume <= 0 {
		return r, &ConstraintError{Msg: errVolume}
	}
	if r.UnitPrice <= 0 {
		return r, &ConstraintError{Msg: errPrice}
	}
	if !toks[h].integer {
		return r, &ConstraintError{Msg: errHoursInt}
	}
	return r, nil
}
