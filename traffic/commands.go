package traffic

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"speakcity/shared"
)

// Canonical command actions.
const (
	ActionCloseStreet      = "close_street"
	ActionOpenStreet       = "open_street"
	ActionOpenAllStreets   = "open_all_streets"
	ActionClosePeriferico  = "close_periferico"
	ActionOpenPeriferico   = "open_periferico"
	ActionSetLightColor    = "set_light_color"
	ActionLightRed         = "light_red"
	ActionLightGreen       = "light_green"
	ActionDeactivateLight  = "deactivate_light"
	ActionActivateLight    = "activate_light"
	ActionResetLight       = "reset_light"
	ActionSetLightInterval = "set_light_interval"
	ActionSetDensity       = "set_density"
	ActionStopCar          = "stop_car"
	ActionResumeCar        = "resume_car"
)

// actionAliases maps the operator console's Spanish vocabulary onto the
// canonical actions.
var actionAliases = map[string]string{
	"cerrar_calle":           ActionCloseStreet,
	"bloquear_via":           ActionCloseStreet,
	"cerrar_cruce":           ActionCloseStreet,
	"abrir_calle":            ActionOpenStreet,
	"desbloquear_via":        ActionOpenStreet,
	"abrir_cruce":            ActionOpenStreet,
	"abrir_todas":            ActionOpenAllStreets,
	"cerrar_periferico":      ActionClosePeriferico,
	"abrir_periferico":       ActionOpenPeriferico,
	"cambiar_semaforo_rojo":  ActionLightRed,
	"cambiar_semaforo_verde": ActionLightGreen,
	"desactivar_semaforo":    ActionDeactivateLight,
	"activar_semaforo":       ActionActivateLight,
	"programar_semaforo":     ActionSetLightInterval,
	"cambiar_densidad":       ActionSetDensity,
	"detener_auto":           ActionStopCar,
	"reanudar_auto":          ActionResumeCar,
}

// NormalizeAction lowercases an action and resolves aliases.
func NormalizeAction(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	if canonical, ok := actionAliases[a]; ok {
		return canonical
	}
	return a
}

// Execute applies one command and reports its outcome. Errors are returned
// inside the result so a batch can continue past a bad command.
func (s *Simulation) Execute(cmd shared.Command) shared.CommandResult {
	res := shared.CommandResult{Command: cmd}
	changed, affected, err := s.Apply(cmd)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	res.Changed = changed
	res.Affected = affected
	return res
}

// ExecuteBatch applies commands in order.
func (s *Simulation) ExecuteBatch(batch shared.CommandBatch) shared.CommandResponse {
	resp := shared.CommandResponse{RequestID: batch.RequestID}
	for _, cmd := range batch.Commands {
		resp.Results = append(resp.Results, s.Execute(cmd))
	}
	return resp
}

// Apply runs one command and returns the raw outcome, including the typed
// error for unknown ids or invalid arguments.
func (s *Simulation) Apply(cmd shared.Command) (bool, []string, error) {
	action := NormalizeAction(cmd.Action)
	target := strings.TrimSpace(cmd.Target)

	switch action {
	case ActionCloseStreet:
		var changed bool
		var err error
		if cmd.Seconds > 0 {
			changed, err = s.CloseStreetFor(target, seconds(cmd.Seconds))
		} else {
			changed, err = s.CloseStreet(target)
		}
		return changed, affectedIf(changed, strings.ToUpper(target)), err
	case ActionOpenStreet:
		changed, err := s.OpenStreet(target)
		return changed, affectedIf(changed, strings.ToUpper(target)), err
	case ActionOpenAllStreets:
		ids := s.OpenAllStreets()
		return len(ids) > 0, ids, nil
	case ActionClosePeriferico:
		ids := s.ClosePeriferico()
		return len(ids) > 0, ids, nil
	case ActionOpenPeriferico:
		ids := s.OpenPeriferico()
		return len(ids) > 0, ids, nil
	}

	if action == ActionSetDensity {
		d, err := ParseDensity(firstNonEmpty(cmd.Density, target))
		if err != nil {
			return false, nil, err
		}
		if _, err := s.SetDensity(d); err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}

	if action == ActionStopCar || action == ActionResumeCar {
		id, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(target), "car "))
		if err != nil {
			return false, nil, fmt.Errorf("%w: %q", ErrUnknownCar, target)
		}
		var changed bool
		if action == ActionStopCar {
			changed, err = s.StopCar(id)
		} else {
			changed, err = s.ResumeCar(id)
		}
		return changed, affectedIf(changed, fmt.Sprintf("car %d", id)), err
	}

	// Everything below addresses a single light.
	intersection, dir, err := ParseLightID(target)
	if err != nil {
		if _, known := lightActions[action]; !known {
			return false, nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
		}
		return false, nil, err
	}
	var changed bool
	switch action {
	case ActionSetLightColor:
		var c Color
		c, err = ParseColor(cmd.Color)
		if err == nil {
			changed, err = s.SetLightColor(intersection, dir, c)
		}
	case ActionLightRed:
		changed, err = s.SetLightColor(intersection, dir, Red)
	case ActionLightGreen:
		changed, err = s.SetLightColor(intersection, dir, Green)
	case ActionDeactivateLight:
		changed, err = s.DeactivateLight(intersection, dir)
	case ActionActivateLight:
		changed, err = s.ActivateLight(intersection, dir)
	case ActionResetLight:
		changed, err = s.ResetLight(intersection, dir)
	case ActionSetLightInterval:
		changed, err = s.SetLightInterval(intersection, dir, int(math.Round(cmd.Seconds)))
	default:
		return false, nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return changed, affectedIf(changed, LightID(intersection, dir)), err
}

var lightActions = map[string]struct{}{
	ActionSetLightColor:    {},
	ActionLightRed:         {},
	ActionLightGreen:       {},
	ActionDeactivateLight:  {},
	ActionActivateLight:    {},
	ActionResetLight:       {},
	ActionSetLightInterval: {},
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func affectedIf(changed bool, id string) []string {
	if !changed {
		return nil
	}
	return []string{id}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
