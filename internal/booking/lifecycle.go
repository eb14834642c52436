package booking

import (
	"fmt"
	"strings"

	"github.com/sitevisit/backend/internal/models"
)

// Action is an administrator decision applied to an appointment.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionPostpone Action = "postpone"
)

var AllActions = []Action{ActionConfirm, ActionReject, ActionComplete, ActionPostpone}

type transition struct {
	from []models.AppointmentStatus
	to   models.AppointmentStatus
}

var transitions = map[Action]transition{
	ActionConfirm: {
		from: []models.AppointmentStatus{models.AppointmentStatusPending},
		to:   models.AppointmentStatusConfirmed,
	},
	ActionReject: {
		from: []models.AppointmentStatus{models.AppointmentStatusPending},
		to:   models.AppointmentStatusRejected,
	},
	ActionComplete: {
		from: []models.AppointmentStatus{
			models.AppointmentStatusPending,
			models.AppointmentStatusConfirmed,
			models.AppointmentStatusPostponed,
		},
		to: models.AppointmentStatusCompleted,
	},
	ActionPostpone: {
		from: []models.AppointmentStatus{
			models.AppointmentStatusPending,
			models.AppointmentStatusConfirmed,
			models.AppointmentStatusPostponed,
		},
		to: models.AppointmentStatusPostponed,
	},
}

// statusActions maps the status names accepted by the admin status endpoint.
var statusActions = map[models.AppointmentStatus]Action{
	models.AppointmentStatusConfirmed: ActionConfirm,
	models.AppointmentStatusRejected:  ActionReject,
	models.AppointmentStatusCompleted: ActionComplete,
}

func ParseAction(value string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := transitions[action]; !ok {
		return "", ErrInvalidAction
	}
	return action, nil
}

// ActionForStatus converts a requested target status (confirmed, rejected or
// completed) into the action that reaches it.
func ActionForStatus(value string) (Action, error) {
	status, err := models.ParseAppointmentStatus(value)
	if err != nil {
		return "", ErrInvalidAction
	}
	action, ok := statusActions[status]
	if !ok {
		return "", ErrInvalidAction
	}
	return action, nil
}

func IsTerminal(status models.AppointmentStatus) bool {
	return status == models.AppointmentStatusRejected || status == models.AppointmentStatusCompleted
}

// Transition returns the status reached by applying action to from.
func Transition(from models.AppointmentStatus, action Action) (models.AppointmentStatus, error) {
	if IsTerminal(from) {
		return "", &Error{
			Kind:    KindTerminalState,
			Code:    CodeTerminalStateViolation,
			Message: fmt.Sprintf("appointment is %s and cannot be changed (%s)", from, action),
		}
	}

	rule, ok := transitions[action]
	if !ok {
		return "", ErrInvalidAction
	}
	for _, allowed := range rule.from {
		if allowed == from {
			return rule.to, nil
		}
	}
	return "", &Error{
		Kind:    KindConflict,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s an appointment that is %s", action, from),
	}
}

// AllowedActions lists the actions valid from status, in declaration order.
func AllowedActions(status models.AppointmentStatus) []Action {
	var out []Action
	for _, action := range AllActions {
		if _, err := Transition(status, action); err == nil {
			out = append(out, action)
		}
	}
	return out
}
