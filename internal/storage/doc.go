// Package storage provides the durable registry used by the bot.
//
// It holds three record kinds:
//   - Endpoints (monitored URLs, each owned by exactly one chat)
//   - Chats (notification destinations, keyed by platform chat id)
//   - Subscriptions (chat -> endpoint links for health notifications)
//
// The store is CRUD-only. Ownership and cascade rules live in the
// registry service; each store call is individually atomic but
// multi-step workflows are not wrapped in a transaction.
package storage
