// Package receiver is the single ingestion path for vital-sign readings.
// Receiver.Accept validates a reading, appends it to the store, evaluates
// alert rules and records metrics; the HTTP API and the MQTT Subscriber both
// feed readings through it.
package receiver
