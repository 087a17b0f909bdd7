package featureflag

type Flag string

const (
	// FlagNoQueryTimeout disables the aggregation timeout so range
	// queries wait for every partial result indefinitely.
	FlagNoQueryTimeout Flag = "NO_QUERY_TIMEOUT"

	// FlagNoPersistence keeps all chunk state in memory regardless of
	// the configured store path.
	FlagNoPersistence Flag = "NO_PERSISTENCE"

	// FlagNoLighting turns every lighting command into a no-op.
	FlagNoLighting Flag = "NO_LIGHTING"

	// FlagNoBlockUpdateBroadcast suppresses per-block world update
	// publications from partitions.
	FlagNoBlockUpdateBroadcast Flag = "NO_BLOCK_UPDATE_BROADCAST"
)
