package aktor

import (
	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Fixed command keys of servo devices.
const (
	KeyCurrentPosition byte = 0x01
	KeyDesiredPosition byte = 0x02
	KeyCurrentVelocity byte = 0x03
	KeyDesiredVelocity byte = 0x04
	KeyCurrentCurrent  byte = 0x05
	KeyDesiredCurrent  byte = 0x06
	KeyCurrentPWM      byte = 0x07
	KeyDesiredPWM      byte = 0x08
	KeyControlState    byte = 0x09
	KeyMaxVelocity     byte = 0x0A
	KeyMaxCurrent      byte = 0x0B
	KeyMaxPWM          byte = 0x0C

	servoCommands = 12
)

// ControlState is the active control loop of a servo.
type ControlState int32

// Control states.
const (
	ControlDisabled ControlState = 0
	ControlPosition ControlState = 1
	ControlVelocity ControlState = 2
	ControlCurrent  ControlState = 3
	ControlPWM      ControlState = 4
)

// String implements fmt.Stringer.
func (s ControlState) String() string {
	switch s {
	case ControlDisabled:
		return "disabled"
	case ControlPosition:
		return "position"
	case ControlVelocity:
		return "velocity"
	case ControlCurrent:
		return "current"
	case ControlPWM:
		return "pwm"
	}
	return "unknown"
}

// Servo is an Aktor with the fixed servo command set.
type Servo struct {
	*Aktor
}

// NewServo creates a Servo on dev.
func NewServo(dev *feldbus.Device) *Servo {
	return &Servo{Aktor: New(dev, servoCommands)}
}

// Position returns the current position.
func (s *Servo) Position() (float32, bool) { return s.Value(KeyCurrentPosition) }

// SetPosition sets the desired position.
func (s *Servo) SetPosition(v float32) bool { return s.SetValue(KeyDesiredPosition, v) }

// Velocity returns the current velocity.
func (s *Servo) Velocity() (float32, bool) { return s.Value(KeyCurrentVelocity) }

// SetVelocity sets the desired velocity.
func (s *Servo) SetVelocity(v float32) bool { return s.SetValue(KeyDesiredVelocity, v) }

// Current returns the current motor current.
func (s *Servo) Current() (float32, bool) { return s.Value(KeyCurrentCurrent) }

// SetCurrent sets the desired motor current.
func (s *Servo) SetCurrent(v float32) bool { return s.SetValue(KeyDesiredCurrent, v) }

// PWM returns the current duty cycle.
func (s *Servo) PWM() (float32, bool) { return s.Value(KeyCurrentPWM) }

// SetPWM sets the desired duty cycle.
func (s *Servo) SetPWM(v float32) bool { return s.SetValue(KeyDesiredPWM, v) }

// MaxVelocity returns the velocity limit.
func (s *Servo) MaxVelocity() (float32, bool) { return s.Value(KeyMaxVelocity) }

// SetMaxVelocity sets the velocity limit.
func (s *Servo) SetMaxVelocity(v float32) bool { return s.SetValue(KeyMaxVelocity, v) }

// MaxCurrent returns the current limit.
func (s *Servo) MaxCurrent() (float32, bool) { return s.Value(KeyMaxCurrent) }

// SetMaxCurrent sets the current limit.
func (s *Servo) SetMaxCurrent(v float32) bool { return s.SetValue(KeyMaxCurrent, v) }

// MaxPWM returns the duty cycle limit.
func (s *Servo) MaxPWM() (float32, bool) { return s.Value(KeyMaxPWM) }

// SetMaxPWM sets the duty cycle limit.
func (s *Servo) SetMaxPWM(v float32) bool { return s.SetValue(KeyMaxPWM, v) }

// ControlState returns the active control loop.
func (s *Servo) ControlState() (ControlState, bool) {
	v, ok := s.ControlValue(KeyControlState)
	return ControlState(v), ok
}

// SetControlState switches the control loop.
func (s *Servo) SetControlState(state ControlState) bool {
	return s.SetControlValue(KeyControlState, int32(state))
}

// Disable turns all control loops off.
func (s *Servo) Disable() bool {
	return s.SetControlState(ControlDisabled)
}
