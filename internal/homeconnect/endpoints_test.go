package homeconnect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
)

const testHaID = "SIEMENS-WM14T6H0-000000000001"

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

// recordingClient answers every request with response and records it.
func recordingClient(t *testing.T, response string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	c := newTestClient(t, newFakeTokens("at-1"), func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 { //nolint:errcheck // Test server
			json.Unmarshal(data, &rec.body) //nolint:errcheck // asserted by callers
		}
		if response == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeBody(w, http.StatusOK, response)
	})
	return c, rec
}

func TestCommands_RequestShape(t *testing.T) {
	base := "/api/homeappliances/" + testHaID
	temp := appliance.Record{Key: appliance.KeyWasherTemperature, Value: "LaundryCare.Washer.EnumType.Temperature.GC40"}

	tests := []struct {
		name     string
		call     func(ctx context.Context, c *Client) error
		method   string
		path     string
		wantData map[string]any
	}{
		{
			name: "set setting",
			call: func(ctx context.Context, c *Client) error {
				return c.SetSetting(ctx, testHaID, appliance.KeyPowerState, appliance.PowerOn)
			},
			method:   http.MethodPut,
			path:     base + "/settings/" + appliance.KeyPowerState,
			wantData: map[string]any{"key": appliance.KeyPowerState, "value": appliance.PowerOn},
		},
		{
			name: "execute command",
			call: func(ctx context.Context, c *Client) error {
				return c.ExecuteCommand(ctx, testHaID, appliance.CommandPauseProgram)
			},
			method:   http.MethodPut,
			path:     base + "/commands/" + appliance.CommandPauseProgram,
			wantData: map[string]any{"key": appliance.CommandPauseProgram, "value": true},
		},
		{
			name: "start program with options",
			call: func(ctx context.Context, c *Client) error {
				return c.StartProgram(ctx, testHaID, "LaundryCare.Washer.Program.Cotton", []appliance.Record{temp})
			},
			method: http.MethodPut,
			path:   base + "/programs/active",
			wantData: map[string]any{
				"key": "LaundryCare.Washer.Program.Cotton",
				"options": []any{map[string]any{
					"key":   appliance.KeyWasherTemperature,
					"value": "LaundryCare.Washer.EnumType.Temperature.GC40",
				}},
			},
		},
		{
			name: "select program",
			call: func(ctx context.Context, c *Client) error {
				return c.SelectProgram(ctx, testHaID, "LaundryCare.Washer.Program.Cotton", nil)
			},
			method:   http.MethodPut,
			path:     base + "/programs/selected",
			wantData: map[string]any{"key": "LaundryCare.Washer.Program.Cotton"},
		},
		{
			name: "stop active program",
			call: func(ctx context.Context, c *Client) error {
				return c.StopActiveProgram(ctx, testHaID)
			},
			method: http.MethodDelete,
			path:   base + "/programs/active",
		},
		{
			name: "active option with unit",
			call: func(ctx context.Context, c *Client) error {
				return c.SetActiveProgramOption(ctx, testHaID, "BSH.Common.Option.StartInRelative", int64(3600), "seconds")
			},
			method:   http.MethodPut,
			path:     base + "/programs/active/options/BSH.Common.Option.StartInRelative",
			wantData: map[string]any{"key": "BSH.Common.Option.StartInRelative", "value": float64(3600), "unit": "seconds"},
		},
		{
			name: "selected option",
			call: func(ctx context.Context, c *Client) error {
				return c.SetSelectedProgramOption(ctx, testHaID, appliance.KeyDryerDryingTarget, "LaundryCare.Dryer.EnumType.DryingTarget.CupboardDry", "")
			},
			method:   http.MethodPut,
			path:     base + "/programs/selected/options/" + appliance.KeyDryerDryingTarget,
			wantData: map[string]any{"key": appliance.KeyDryerDryingTarget, "value": "LaundryCare.Dryer.EnumType.DryingTarget.CupboardDry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := recordingClient(t, "")

			if err := tt.call(context.Background(), c); err != nil {
				t.Fatalf("call error = %v", err)
			}
			if rec.method != tt.method {
				t.Errorf("method = %s, want %s", rec.method, tt.method)
			}
			if rec.path != tt.path {
				t.Errorf("path = %s, want %s", rec.path, tt.path)
			}

			if tt.wantData == nil {
				if rec.body != nil {
					t.Errorf("body = %v, want none", rec.body)
				}
				return
			}
			gotJSON, _ := json.Marshal(rec.body["data"]) //nolint:errcheck // Test comparison
			wantJSON, _ := json.Marshal(tt.wantData)     //nolint:errcheck // Test comparison
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("data = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestGetAppliances(t *testing.T) {
	c, rec := recordingClient(t, `{"data":{"homeappliances":[
		{"haId":"`+testHaID+`","name":"Washer","type":"Washer","brand":"Siemens","vib":"WM14T6H0","enumber":"WM14T6H0/01","connected":true},
		{"haId":"BOSCH-HCS06COM1-000000000002","name":"Coffee","type":"CoffeeMaker","brand":"Bosch","connected":false}
	]}}`)

	list, err := c.GetAppliances(context.Background())
	if err != nil {
		t.Fatalf("GetAppliances() error = %v", err)
	}
	if rec.path != "/api/homeappliances" {
		t.Errorf("path = %s", rec.path)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].HaID != testHaID || !list[0].Connected || list[0].ENumber != "WM14T6H0/01" {
		t.Errorf("first = %+v", list[0])
	}
	if list[1].Type != "CoffeeMaker" || list[1].Connected {
		t.Errorf("second = %+v", list[1])
	}
}

func TestGetStatus(t *testing.T) {
	c, rec := recordingClient(t, `{"data":{"status":[
		{"key":"BSH.Common.Status.OperationState","value":"BSH.Common.EnumType.OperationState.Ready"},
		{"key":"BSH.Common.Status.RemoteControlStartAllowed","value":true},
		{"key":"BSH.Common.Option.RemainingProgramTime","value":5400,"unit":"seconds"}
	]}}`)

	records, err := c.GetStatus(context.Background(), testHaID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if rec.path != "/api/homeappliances/"+testHaID+"/status" {
		t.Errorf("path = %s", rec.path)
	}
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}
	if records[0].StringValue() != appliance.OperationReady {
		t.Errorf("operation state = %v", records[0].Value)
	}
	if !records[1].BoolValue() {
		t.Errorf("remote start = %v", records[1].Value)
	}
	if records[2].Value != int64(5400) || records[2].Unit != "seconds" {
		t.Errorf("remaining = %+v", records[2])
	}
}

func TestGetSettings_Empty(t *testing.T) {
	c, _ := recordingClient(t, `{"data":{"settings":[]}}`)

	records, err := c.GetSettings(context.Background(), testHaID)
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("GetSettings() = %v, want none", records)
	}
}

func TestGetSelectedProgram(t *testing.T) {
	c, rec := recordingClient(t, `{"data":{"key":"LaundryCare.Washer.Program.Cotton","options":[
		{"key":"LaundryCare.Washer.Option.Temperature","value":"LaundryCare.Washer.EnumType.Temperature.GC60"},
		{"key":"LaundryCare.Washer.Option.SpinSpeed","value":"LaundryCare.Washer.EnumType.SpinSpeed.RPM1400"}
	]}}`)

	p, err := c.GetSelectedProgram(context.Background(), testHaID)
	if err != nil {
		t.Fatalf("GetSelectedProgram() error = %v", err)
	}
	if rec.path != "/api/homeappliances/"+testHaID+"/programs/selected" {
		t.Errorf("path = %s", rec.path)
	}
	if p.Key != "LaundryCare.Washer.Program.Cotton" {
		t.Errorf("Key = %q", p.Key)
	}
	opt, ok := p.Option(appliance.KeyWasherSpinSpeed)
	if !ok || opt.StringValue() != "LaundryCare.Washer.EnumType.SpinSpeed.RPM1400" {
		t.Errorf("spin option = %+v, %v", opt, ok)
	}
	if _, ok := p.Option(appliance.KeyDryerDryingTarget); ok {
		t.Error("unexpected drying target option")
	}
}

func TestGetSelectedProgramOption(t *testing.T) {
	c, rec := recordingClient(t, `{"data":{"key":"LaundryCare.Washer.Option.Temperature","value":"LaundryCare.Washer.EnumType.Temperature.GC40"}}`)

	opt, err := c.GetSelectedProgramOption(context.Background(), testHaID, appliance.KeyWasherTemperature)
	if err != nil {
		t.Fatalf("GetSelectedProgramOption() error = %v", err)
	}
	if rec.path != "/api/homeappliances/"+testHaID+"/programs/selected/options/"+appliance.KeyWasherTemperature {
		t.Errorf("path = %s", rec.path)
	}
	if opt.Key != appliance.KeyWasherTemperature {
		t.Errorf("Key = %q", opt.Key)
	}
}

func TestGetPrograms(t *testing.T) {
	c, rec := recordingClient(t, `{"data":{"programs":[
		{"key":"LaundryCare.Washer.Program.Cotton","name":"Cotton"},
		{"key":"LaundryCare.Washer.Program.EasyCare"}
	]}}`)

	programs, err := c.GetAvailablePrograms(context.Background(), testHaID)
	if err != nil {
		t.Fatalf("GetAvailablePrograms() error = %v", err)
	}
	if rec.path != "/api/homeappliances/"+testHaID+"/programs/available" {
		t.Errorf("path = %s", rec.path)
	}
	if len(programs) != 2 || programs[0].Name != "Cotton" {
		t.Errorf("programs = %+v", programs)
	}
}

func TestGetCommands(t *testing.T) {
	c, _ := recordingClient(t, `{"data":{"commands":[{"key":"BSH.Common.Command.PauseProgram","name":"Pause"}]}}`)

	cmds, err := c.GetCommands(context.Background(), testHaID)
	if err != nil {
		t.Fatalf("GetCommands() error = %v", err)
	}
	if len(cmds) != 1 || cmds[0].Key != appliance.CommandPauseProgram {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestGetStatusKey_MalformedItem(t *testing.T) {
	c, _ := recordingClient(t, `{"data":{"value":"no key"}}`)

	_, err := c.GetStatusKey(context.Background(), testHaID, appliance.KeyDoorState)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("GetStatusKey() error = %v, want *ParseError", err)
	}
}
