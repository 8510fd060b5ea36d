package config

import "testing"

func TestParseRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		value   string
		want    Range
		wantErr bool
	}{
		{name: "plain", value: "2,5", want: Range{Min: 2, Max: 5}},
		{name: "spaces", value: " 30 , 90 ", want: Range{Min: 30, Max: 90}},
		{name: "single", value: "7,7", want: Range{Min: 7, Max: 7}},
		{name: "reversed", value: "5,2", wantErr: true},
		{name: "negative", value: "-1,5", wantErr: true},
		{name: "onePart", value: "5", wantErr: true},
		{name: "garbage", value: "a,b", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRange(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseRange(%q): expected error, got %+v", tc.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q): %v", tc.value, err)
			}
			if got != tc.want {
				t.Fatalf("ParseRange(%q) = %+v, want %+v", tc.value, got, tc.want)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "abcdef")
	t.Setenv("REF_ID", "777")
	t.Setenv("CHANCE_TO_WIN", "120") // вне диапазона, должен откатиться к дефолту

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Env.APIID != 12345 {
		t.Fatalf("APIID = %d, want 12345", cfg.Env.APIID)
	}
	if cfg.Env.RefID != 777 {
		t.Fatalf("RefID = %d, want 777", cfg.Env.RefID)
	}
	if cfg.Env.ChanceToWin != defaultChanceToWin {
		t.Fatalf("ChanceToWin = %d, want default %d", cfg.Env.ChanceToWin, defaultChanceToWin)
	}
	if cfg.Env.RoundsPerGame != defaultRoundsPerGame {
		t.Fatalf("RoundsPerGame = %+v, want default %+v", cfg.Env.RoundsPerGame, defaultRoundsPerGame)
	}
	if !cfg.Env.NightSleep {
		t.Fatal("NightSleep default must be true")
	}
	if len(cfg.warnings) == 0 {
		t.Fatal("expected warnings about defaulted values")
	}
}

func TestLoadConfigRequiresAPICredentials(t *testing.T) {
	t.Setenv("API_ID", "")
	t.Setenv("API_HASH", "")

	if _, err := loadConfig(""); err == nil {
		t.Fatal("expected error when API_ID is missing")
	}
}
