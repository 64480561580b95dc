package errors

import (
	"math"
	"testing"
)

func TestValidateTolerance(t *testing.T) {
	tests := []struct {
		name    string
		tol     float64
		wantErr bool
	}{
		{"kecamatan", 0.0005, false},
		{"provinsi", 0.01, false},
		{"zero", 0, true},
		{"negative", -0.01, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTolerance("level", tt.tol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTolerance(%v) error = %v, wantErr %v", tt.tol, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidConfig) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidConfig)
			}
		})
	}
}

func TestValidateGapDistance(t *testing.T) {
	tests := []struct {
		d       float64
		wantErr bool
	}{
		{100, false},
		{3000, false},
		{0, false},
		{-1, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := ValidateGapDistance("level", tt.d)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateGapDistance(%v) error = %v, wantErr %v", tt.d, err, tt.wantErr)
		}
	}
}

func TestValidateThreshold(t *testing.T) {
	tests := []struct {
		t       float64
		wantErr bool
	}{
		{0, false},
		{0.005, false},
		{0.99, false},
		{1, true},
		{-0.1, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := ValidateThreshold("provinsi", tt.t)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateThreshold(%v) error = %v, wantErr %v", tt.t, err, tt.wantErr)
		}
	}
}

func TestValidateZoomRange(t *testing.T) {
	tests := []struct {
		name       string
		zmin, zmax int
		wantErr    bool
	}{
		{"kecamatan", 11, 22, false},
		{"provinsi", 1, 6, false},
		{"equal", 7, 7, true},
		{"inverted", 10, 7, true},
		{"negative", -1, 6, true},
		{"too deep", 11, 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateZoomRange(tt.name, tt.zmin, tt.zmax)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateZoomRange(%d, %d) error = %v, wantErr %v", tt.zmin, tt.zmax, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAttributeName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"kode_provinsi", false},
		{"kode_prop_", false},
		{"NAMA_KAB", false},
		{"", true},
		{"1code", true},
		{"nama-kab", true},
		{"nama kab", true},
		{string(make([]byte, 80)), true},
	}

	for _, tt := range tests {
		err := ValidateAttributeName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAttributeName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateOutputName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"geojson", "bnpb_level1_provinsi.geojson", false},
		{"json", "combined.json", false},
		{"upper ext", "LEVEL2.GEOJSON", false},

		{"empty", "", true},
		{"with path", "out/level1.geojson", true},
		{"backslash", "out\\level1.geojson", true},
		{"traversal", "..geojson", true},
		{"wrong ext", "level1.shp", true},
		{"control char", "level\x01.geojson", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
