package parser

import (
	"errors"
	"testing"
)

func TestParseMaterialAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"plain number", `{"materialCode": "Cobalt", "amount": 7.2}`, 7.2},
		{"zero is a real answer", `{"amount": 0}`, 0},
		{"unit inline", `{"amount": "3g"}`, 3},
		{"unit with space", `{"amount": "3.5 grams"}`, 3.5},
		{"numeric string", `{"amount": "0.02"}`, 0.02},
		{"markdown fence", "```json\n{\"amount\": 12}\n```", 12},
		{"surrounding whitespace", "\n  {\"amount\": 1e-3}  \n", 0.001},
		{"implausible negative kept", `{"amount": -4}`, -4},
		{"implausible huge kept", `{"amount": 1e9}`, 1e9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMaterialAmount(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseMaterialAmount_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "The device contains about 3 grams of gold"},
		{"empty", "   "},
		{"truncated", `{"amount": 3`},
		{"missing field", `{"materialCode": "Gold"}`},
		{"wrong type", `{"amount": true}`},
		{"null", `{"amount": null}`},
		{"prose in string", `{"amount": "about 3 grams"}`},
		{"range", `{"amount": "3-5 g"}`},
		{"unquoted keys", `{amount: 3}`},
		{"overflow", `{"amount": 1e999}`},
		{"negative overflow", `{"amount": -1e999}`},
		{"overflow in string", `{"amount": "1e999 g"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMaterialAmount(tt.raw)
			if !errors.Is(err, ErrSchema) {
				t.Fatalf("expected ErrSchema, got value %v err %v", got, err)
			}
		})
	}
}

func TestParseCO2(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"co2Emission": 70.5}`, 70.5},
		{`{"co2Emission": "79 kg"}`, 79},
		{`{"co2Kg": 55}`, 55},
		{`{"co2": "12 kg CO2e"}`, 12},
	}

	for _, tt := range tests {
		got, err := ParseCO2(tt.raw)
		if err != nil {
			t.Errorf("ParseCO2(%s): unexpected error %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCO2(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := ParseCO2(`{"co2Emission": 1e999}`); !errors.Is(err, ErrSchema) {
		t.Errorf("expected ErrSchema for overflowing value, got %v", err)
	}
	if _, err := ParseCO2(`{"emissions": 3}`); !errors.Is(err, ErrSchema) {
		t.Errorf("expected ErrSchema for missing field, got %v", err)
	}
}

func TestParseCommercialInfo(t *testing.T) {
	info, err := ParseCommercialInfo(`{"manufacturer": "Apple", "commercialName": "iPhone 8"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Manufacturer != "Apple" || info.CommercialName != "iPhone 8" {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestParseCommercialInfo_SchemaErrors(t *testing.T) {
	bad := []string{
		`{"manufacturer": "Apple"}`,
		`{"manufacturer": "", "commercialName": "iPhone 8"}`,
		`{"manufacturer": 42, "commercialName": "iPhone 8"}`,
		`Apple makes the iPhone 8`,
	}

	for _, raw := range bad {
		if _, err := ParseCommercialInfo(raw); !errors.Is(err, ErrSchema) {
			t.Errorf("ParseCommercialInfo(%s): expected ErrSchema, got %v", raw, err)
		}
	}
}
