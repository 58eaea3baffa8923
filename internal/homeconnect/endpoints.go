package homeconnect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
)

const appliancesPath = "/api/homeappliances"

// Program is a program resource: an available, selected or active program.
type Program struct {
	Key     string             `json:"key"`
	Name    string             `json:"name,omitempty"`
	Options []appliance.Record `json:"options,omitempty"`
}

// Option returns the option record for key.
func (p Program) Option(key string) (appliance.Record, bool) {
	for _, opt := range p.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return appliance.Record{}, false
}

// Command is a command the appliance currently accepts.
type Command struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// item is the wire form of one key/value in a PUT body.
type item struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

type programBody struct {
	Key     string `json:"key"`
	Options []item `json:"options,omitempty"`
}

type dataBody struct {
	Data any `json:"data"`
}

func appliancePath(haID string, parts ...string) string {
	p := appliancesPath + "/" + url.PathEscape(haID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func optionItems(options []appliance.Record) []item {
	if len(options) == 0 {
		return nil
	}
	items := make([]item, 0, len(options))
	for _, opt := range options {
		items = append(items, item{Key: opt.Key, Value: opt.Value, Unit: opt.Unit})
	}
	return items
}

func parseErr(data []byte, err error) *ParseError {
	return &ParseError{Status: http.StatusOK, Body: data, Err: err}
}

// GetAppliances lists every appliance paired with the account.
func (c *Client) GetAppliances(ctx context.Context) ([]appliance.Descriptor, error) {
	data, err := c.Do(ctx, http.MethodGet, appliancesPath, nil)
	if err != nil {
		return nil, err
	}
	var list struct {
		HomeAppliances []appliance.Descriptor `json:"homeappliances"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, parseErr(data, err)
	}
	return list.HomeAppliances, nil
}

// GetAppliance returns the descriptor of one appliance.
func (c *Client) GetAppliance(ctx context.Context, haID string) (appliance.Descriptor, error) {
	data, err := c.Do(ctx, http.MethodGet, appliancePath(haID), nil)
	if err != nil {
		return appliance.Descriptor{}, err
	}
	var desc appliance.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return appliance.Descriptor{}, parseErr(data, err)
	}
	return desc, nil
}

// GetStatus returns every status value of the appliance.
func (c *Client) GetStatus(ctx context.Context, haID string) ([]appliance.Record, error) {
	return c.getList(ctx, appliancePath(haID, "status"), "status")
}

// GetStatusKey returns one status value.
func (c *Client) GetStatusKey(ctx context.Context, haID, key string) (appliance.Record, error) {
	return c.getItem(ctx, appliancePath(haID, "status", key))
}

// GetSettings returns every setting of the appliance.
func (c *Client) GetSettings(ctx context.Context, haID string) ([]appliance.Record, error) {
	return c.getList(ctx, appliancePath(haID, "settings"), "settings")
}

// GetSetting returns one setting.
func (c *Client) GetSetting(ctx context.Context, haID, key string) (appliance.Record, error) {
	return c.getItem(ctx, appliancePath(haID, "settings", key))
}

// SetSetting changes one setting.
func (c *Client) SetSetting(ctx context.Context, haID, key string, value any) error {
	_, err := c.Do(ctx, http.MethodPut, appliancePath(haID, "settings", key),
		dataBody{Data: item{Key: key, Value: value}})
	return err
}

// GetPrograms lists every program of the appliance.
func (c *Client) GetPrograms(ctx context.Context, haID string) ([]Program, error) {
	return c.getPrograms(ctx, appliancePath(haID, "programs"))
}

// GetAvailablePrograms lists the programs the appliance can run right now.
func (c *Client) GetAvailablePrograms(ctx context.Context, haID string) ([]Program, error) {
	return c.getPrograms(ctx, appliancePath(haID, "programs", "available"))
}

// GetAvailableProgram returns one available program with its option constraints.
func (c *Client) GetAvailableProgram(ctx context.Context, haID, key string) (Program, error) {
	return c.getProgram(ctx, appliancePath(haID, "programs", "available", key))
}

// GetActiveProgram returns the running program.
func (c *Client) GetActiveProgram(ctx context.Context, haID string) (Program, error) {
	return c.getProgram(ctx, appliancePath(haID, "programs", "active"))
}

// StartProgram starts program key with options.
func (c *Client) StartProgram(ctx context.Context, haID, key string, options []appliance.Record) error {
	_, err := c.Do(ctx, http.MethodPut, appliancePath(haID, "programs", "active"),
		dataBody{Data: programBody{Key: key, Options: optionItems(options)}})
	return err
}

// StopActiveProgram stops the running program.
func (c *Client) StopActiveProgram(ctx context.Context, haID string) error {
	_, err := c.Do(ctx, http.MethodDelete, appliancePath(haID, "programs", "active"), nil)
	return err
}

// SetActiveProgramOption changes an option of the running program.
func (c *Client) SetActiveProgramOption(ctx context.Context, haID, key string, value any, unit string) error {
	_, err := c.Do(ctx, http.MethodPut, appliancePath(haID, "programs", "active", "options", key),
		dataBody{Data: item{Key: key, Value: value, Unit: unit}})
	return err
}

// GetSelectedProgram returns the program selected on the appliance.
func (c *Client) GetSelectedProgram(ctx context.Context, haID string) (Program, error) {
	return c.getProgram(ctx, appliancePath(haID, "programs", "selected"))
}

// SelectProgram selects program key with options without starting it.
func (c *Client) SelectProgram(ctx context.Context, haID, key string, options []appliance.Record) error {
	_, err := c.Do(ctx, http.MethodPut, appliancePath(haID, "programs", "selected"),
		dataBody{Data: programBody{Key: key, Options: optionItems(options)}})
	return err
}

// GetSelectedProgramOption returns one option of the selected program.
func (c *Client) GetSelectedProgramOption(ctx context.Context, haID, key string) (appliance.Record, error) {
	return c.getItem(ctx, appliancePath(haID, "programs", "selected", "options", key))
}

// SetSelectedProgramOption changes an option of the selected program.
func (c *Client) SetSelectedProgramOption(ctx context.Context, haID, key string, value any, unit string) error {
	_, err := c.Do(ctx, http.MethodPut, appliancePath(haID, "programs", "selected", "options", key),
		dataBody{Data: item{Key: key, Value: value, Unit: unit}})
	return err
}

// GetCommands lists the commands the appliance currently accepts.
func (c *Client) GetCommands(ctx context.Context, haID string) ([]Command, error) {
	data, err := c.Do(ctx, http.MethodGet, appliancePath(haID, "commands"), nil)
	if err != nil {
		return nil, err
	}
	var list struct {
		Commands []Command `json:"commands"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, parseErr(data, err)
	}
	return list.Commands, nil
}

// ExecuteCommand triggers command key.
func (c *Client) ExecuteCommand(ctx context.Context, haID, key string) error {
	_, err := c.Do(ctx, http.MethodPut, appliancePath(haID, "commands", key),
		dataBody{Data: item{Key: key, Value: true}})
	return err
}

func (c *Client) getList(ctx context.Context, path, field string) ([]appliance.Record, error) {
	data, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, parseErr(data, err)
	}
	records, err := appliance.DecodeItems(wrapper[field])
	if err != nil {
		return nil, parseErr(data, err)
	}
	return records, nil
}

func (c *Client) getItem(ctx context.Context, path string) (appliance.Record, error) {
	data, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return appliance.Record{}, err
	}
	rec, err := appliance.DecodeItem(data)
	if err != nil {
		return appliance.Record{}, parseErr(data, err)
	}
	return rec, nil
}

func (c *Client) getProgram(ctx context.Context, path string) (Program, error) {
	data, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Program{}, err
	}
	return decodeProgram(data)
}

func (c *Client) getPrograms(ctx context.Context, path string) ([]Program, error) {
	data, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var list struct {
		Programs []json.RawMessage `json:"programs"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, parseErr(data, err)
	}
	programs := make([]Program, 0, len(list.Programs))
	for _, raw := range list.Programs {
		p, err := decodeProgram(raw)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

func decodeProgram(data []byte) (Program, error) {
	var raw struct {
		Key     string          `json:"key"`
		Name    string          `json:"name"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Program{}, parseErr(data, err)
	}
	options, err := appliance.DecodeItems(raw.Options)
	if err != nil {
		return Program{}, parseErr(data, err)
	}
	return Program{Key: raw.Key, Name: raw.Name, Options: options}, nil
}
