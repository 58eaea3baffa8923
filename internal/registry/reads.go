package registry

import (
	"context"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
)

// Remote reads query the REST API on every call and never touch the local
// mirror. Only registered appliances can be queried.

// FetchStatus reads one status value from the remote.
func (r *Registry) FetchStatus(ctx context.Context, haID, key string) (appliance.Record, error) {
	if _, err := r.lookup(haID); err != nil {
		return appliance.Record{}, err
	}
	return r.client.GetStatusKey(ctx, haID, key)
}

// FetchSetting reads one setting from the remote.
func (r *Registry) FetchSetting(ctx context.Context, haID, key string) (appliance.Record, error) {
	if _, err := r.lookup(haID); err != nil {
		return appliance.Record{}, err
	}
	return r.client.GetSetting(ctx, haID, key)
}

// Programs lists every program the appliance knows. With available set,
// only the programs it can run right now.
func (r *Registry) Programs(ctx context.Context, haID string, available bool) ([]homeconnect.Program, error) {
	if _, err := r.lookup(haID); err != nil {
		return nil, err
	}
	if available {
		return r.client.GetAvailablePrograms(ctx, haID)
	}
	return r.client.GetPrograms(ctx, haID)
}

// AvailableProgram returns one available program with its option
// constraints.
func (r *Registry) AvailableProgram(ctx context.Context, haID, key string) (homeconnect.Program, error) {
	if _, err := r.lookup(haID); err != nil {
		return homeconnect.Program{}, err
	}
	return r.client.GetAvailableProgram(ctx, haID, key)
}

// ActiveProgram returns the running program as the remote reports it.
func (r *Registry) ActiveProgram(ctx context.Context, haID string) (homeconnect.Program, error) {
	if _, err := r.lookup(haID); err != nil {
		return homeconnect.Program{}, err
	}
	return r.client.GetActiveProgram(ctx, haID)
}

// Commands lists the commands the appliance accepts right now.
func (r *Registry) Commands(ctx context.Context, haID string) ([]homeconnect.Command, error) {
	if _, err := r.lookup(haID); err != nil {
		return nil, err
	}
	return r.client.GetCommands(ctx, haID)
}
