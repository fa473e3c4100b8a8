// Package actuator defines the arm actuator port for the Arm Control Container.
//
// Actuator drivers implement vendor-specific protocols to communicate with the
// physical manipulator. The Port interface provides a stable southbound contract
// that all drivers must implement, and every driver fault is normalized at this
// boundary to the container error codes before it reaches the job layer.
package actuator
