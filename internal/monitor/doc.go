// Package monitor implements the periodic price-posting scheduler.
//
// On each tick it loads the enabled subscriptions, groups them by coin so one
// tick performs one price lookup per distinct coin, checks which subscriptions
// are due, resolves each destination and delivers, recording the dispatch
// timestamp only after a confirmed send. Delivery is at-least-once: any
// failure defers the subscription to the next tick, and a lost timestamp
// write after a send may produce a duplicate post.
package monitor
