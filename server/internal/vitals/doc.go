// Package vitals defines the vital-sign reading model shared by the HTTP API,
// the MQTT receiver, and the store, together with the field validation rules
// a reading must pass before it is stored.
package vitals
