package capability

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewCondition_SortsAndDedupes(t *testing.T) {
	c := NewCondition("P5", 6, 3, 6, 1)

	want := []int{1, 3, 6}
	if !reflect.DeepEqual(c.Allowed, want) {
		t.Errorf("Allowed = %v, want %v", c.Allowed, want)
	}
	if c.Field != "P5" {
		t.Errorf("Field = %q, want P5", c.Field)
	}
}

func TestCondition_Matches(t *testing.T) {
	c := NewCondition("P5", 3, 6)

	tests := []struct {
		name     string
		snapshot IOSnapshot
		want     bool
	}{
		{"allowed value", IOSnapshot{"P5": {Val: 6}}, true},
		{"other allowed value", IOSnapshot{"P5": {Val: 3}}, true},
		{"value not allowed", IOSnapshot{"P5": {Val: 4}}, false},
		{"field missing", IOSnapshot{"P1": {Val: 3}}, false},
		{"nil snapshot", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Matches(tt.snapshot); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatePlatform(t *testing.T) {
	for _, p := range AllPlatforms() {
		if err := ValidatePlatform(p); err != nil {
			t.Errorf("ValidatePlatform(%q) = %v, want nil", p, err)
		}
	}

	if err := ValidatePlatform("toaster"); !errors.Is(err, ErrInvalidPlatform) {
		t.Errorf("ValidatePlatform(toaster) = %v, want ErrInvalidPlatform", err)
	}
}

func TestValidateRW(t *testing.T) {
	tests := []struct {
		input   RW
		wantErr bool
	}{
		{"R", false},
		{"W", false},
		{"RW", false},
		{"", false},
		{"X", true},
		{"rw", true},
	}

	for _, tt := range tests {
		err := ValidateRW(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRW(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidRW) {
			t.Errorf("ValidateRW(%q) = %v, want ErrInvalidRW", tt.input, err)
		}
	}
}

func TestValidateIOKey(t *testing.T) {
	valid := []IOKey{"P1", "ALM", "EVTLO", "L1", "O_2"}
	for _, k := range valid {
		if err := ValidateIOKey(k); err != nil {
			t.Errorf("ValidateIOKey(%q) = %v, want nil", k, err)
		}
	}

	invalid := []IOKey{"", "1P", "P 5", "P5&255"}
	for _, k := range invalid {
		if err := ValidateIOKey(k); !errors.Is(err, ErrInvalidIOKey) {
			t.Errorf("ValidateIOKey(%q) = %v, want ErrInvalidIOKey", k, err)
		}
	}
}

func TestFeatureSet_Apply(t *testing.T) {
	base := FeatureSet{Generation: GenerationLegacy, LightType: LightTypeDimmer}

	got := base.Apply(FeatureOverride{
		ColorTemp: Bool(true),
		LightType: String(LightTypeRGBW),
	})

	if !got.ColorTemp {
		t.Error("ColorTemp = false, want true")
	}
	if got.LightType != LightTypeRGBW {
		t.Errorf("LightType = %q, want %q", got.LightType, LightTypeRGBW)
	}
	if got.Generation != GenerationLegacy {
		t.Errorf("Generation = %d, want untouched", got.Generation)
	}
	if base.ColorTemp {
		t.Error("Apply mutated the receiver")
	}
}

func TestFeatureSet_Flags(t *testing.T) {
	f := FeatureSet{IsDynamic: true, CoverType: CoverTypePositional, HasPositioning: true}

	want := []string{"is_dynamic", "cover_type:positional", "has_positioning"}
	if got := f.Flags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Flags() = %v, want %v", got, want)
	}
}

func TestDeviceConfig_DeepCopy(t *testing.T) {
	val := 1
	orig := &DeviceConfig{
		DeviceType: "SL_NATURE",
		Platforms: PlatformMap{
			PlatformSwitch: IOMap{"P1": {RW: RWReadWrite, Commands: map[string]Command{"on": {Type: 0x81, Val: &val}}}},
		},
		Modes: []ModeEntry{{
			Name:      "switch_mode",
			Condition: NewCondition("P5", 1),
			Platforms: PlatformMap{PlatformSwitch: IOMap{"P1": {}}},
		}},
		Fan:          &FanConfig{Presets: map[string]int{"low": 1}},
		SnapshotKeys: []IOKey{"P5"},
	}

	cpy := orig.DeepCopy()
	if !reflect.DeepEqual(orig, cpy) {
		t.Fatal("DeepCopy() is not equal to the original")
	}

	cpy.Platforms[PlatformSwitch]["P1"] = IOAttributeSpec{RW: RWRead}
	*cpy.Platforms[PlatformSwitch]["P1"].Commands["on"].Val = 2
	cpy.Modes[0].Condition.Allowed[0] = 9
	cpy.Fan.Presets["low"] = 5
	cpy.SnapshotKeys[0] = "P6"

	if orig.Platforms[PlatformSwitch]["P1"].RW != RWReadWrite {
		t.Error("platform map shared with copy")
	}
	if val != 1 {
		t.Error("command value shared with copy")
	}
	if orig.Modes[0].Condition.Allowed[0] != 1 {
		t.Error("condition values shared with copy")
	}
	if orig.Fan.Presets["low"] != 1 {
		t.Error("fan presets shared with copy")
	}
	if orig.SnapshotKeys[0] != "P5" {
		t.Error("snapshot keys shared with copy")
	}
}

func TestDeviceConfig_DeclaredIOKeys(t *testing.T) {
	d := &DeviceConfig{
		Platforms: PlatformMap{PlatformSensor: IOMap{"P9": {}}},
		Modes: []ModeEntry{{
			Name:      "m",
			Platforms: PlatformMap{PlatformSwitch: IOMap{"P1": {}}},
		}},
		SnapshotKeys: []IOKey{"P5"},
	}

	keys := d.DeclaredIOKeys()
	for _, k := range []IOKey{"P9", "P1", "P5"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("DeclaredIOKeys() missing %q", k)
		}
	}
	if len(keys) != 3 {
		t.Errorf("DeclaredIOKeys() has %d keys, want 3", len(keys))
	}
}

func TestResult_Constructors(t *testing.T) {
	ok := Success(PlatformMap{}, "m")
	if !ok.OK() || ok.Status != StatusSuccess || ok.ActiveMode != "m" {
		t.Errorf("Success() = %+v", ok)
	}

	warn := Warning(PlatformMap{}, "", ReasonBaseConfig)
	if !warn.OK() || warn.Message() != ReasonBaseConfig {
		t.Errorf("Warning() = %+v", warn)
	}

	fail := Failure(ErrUnknownDeviceType)
	if fail.OK() || !errors.Is(fail.Err, ErrUnknownDeviceType) {
		t.Errorf("Failure() = %+v", fail)
	}
	if fail.Status.String() != "error" {
		t.Errorf("Status.String() = %q, want error", fail.Status.String())
	}
}
