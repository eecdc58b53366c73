// Package alerts implements the threshold rule engine and webhook delivery
// for vital-sign alerting. Rules are evaluated against every accepted
// reading; webhooks are delivered to Teams, Slack, or generic HTTP targets.
package alerts
