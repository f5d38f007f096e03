package topics

const (
	// Apostas
	BetPlaced = "bet_placed"

	// Liquidação
	MarketResolved = "market_resolved"
	PayoutCredited = "payout_credited"

	// DLQs
	MarketResolvedDLQ = "market_resolved_dlq"
)

// Canal Redis Pub/Sub com snapshots de pools para o websocket
const PoolsBroadcastChannel = "market_pools_broadcast"
