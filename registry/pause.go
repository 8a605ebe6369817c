package registry

import (
	"fmt"

	"horseregistry/model"
)

// PauseGate is the global circuit breaker consulted by every mutating
// registry operation. Lookups stay open while it is engaged.
type PauseGate struct {
	state State
	roles *RoleLedger
}

// NewPauseGate binds a PauseGate to the state of one transaction.
func NewPauseGate(state State, roles *RoleLedger) *PauseGate {
	return &PauseGate{state: state, roles: roles}
}

func (pg *PauseGate) key() (string, error) {
	return pg.state.CreateCompositeKey(pauseObjectType, []string{})
}

// State returns the stored pause record; the zero record means active.
func (pg *PauseGate) State() (*model.PauseState, error) {
	key, err := pg.key()
	if err != nil {
		return nil, fmt.Errorf("failed to create pause key: %w", err)
	}
	ps := &model.PauseState{ObjectType: pauseObjectType}
	if _, err := getJSON(pg.state, key, ps); err != nil {
		return nil, fmt.Errorf("failed to read pause state: %w", err)
	}
	return ps, nil
}

// Paused reports whether the gate is engaged.
func (pg *PauseGate) Paused() (bool, error) {
	ps, err := pg.State()
	if err != nil {
		return false, err
	}
	return ps.Paused, nil
}

// RequireActive fails with ErrPaused while the gate is engaged.
func (pg *PauseGate) RequireActive() error {
	paused, err := pg.Paused()
	if err != nil {
		return err
	}
	if paused {
		return fmt.Errorf("%w: registry is paused", ErrPaused)
	}
	return nil
}

// Pause engages the gate and returns the state it stored. Requires
// PAUSER_ROLE.
func (pg *PauseGate) Pause(caller string) (*model.PauseState, error) {
	if err := pg.roles.Require(PauserRole, caller); err != nil {
		return nil, err
	}
	paused, err := pg.Paused()
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, fmt.Errorf("%w: registry is already paused", ErrPaused)
	}
	ps, err := pg.set(true, caller)
	if err != nil {
		return nil, err
	}
	if err := emit(pg.state, model.EventPaused, model.PauseEvent{Account: caller}); err != nil {
		return nil, err
	}
	logger.Infof("Registry paused by '%s'.", caller)
	return ps, nil
}

// Unpause releases the gate and returns the state it stored. Requires
// PAUSER_ROLE.
func (pg *PauseGate) Unpause(caller string) (*model.PauseState, error) {
	if err := pg.roles.Require(PauserRole, caller); err != nil {
		return nil, err
	}
	paused, err := pg.Paused()
	if err != nil {
		return nil, err
	}
	if !paused {
		return nil, fmt.Errorf("%w: registry is not paused", ErrInvalidInput)
	}
	ps, err := pg.set(false, caller)
	if err != nil {
		return nil, err
	}
	if err := emit(pg.state, model.EventUnpaused, model.PauseEvent{Account: caller}); err != nil {
		return nil, err
	}
	logger.Infof("Registry unpaused by '%s'.", caller)
	return ps, nil
}

func (pg *PauseGate) set(paused bool, caller string) (*model.PauseState, error) {
	now, err := txTimestamp(pg.state)
	if err != nil {
		return nil, err
	}
	key, err := pg.key()
	if err != nil {
		return nil, fmt.Errorf("failed to create pause key: %w", err)
	}
	ps := &model.PauseState{ObjectType: pauseObjectType, Paused: paused, UpdatedBy: caller, UpdatedAt: now}
	if err := putJSON(pg.state, key, ps); err != nil {
		return nil, fmt.Errorf("failed to save pause state: %w", err)
	}
	return ps, nil
}
