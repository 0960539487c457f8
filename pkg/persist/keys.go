package persist

import "fmt"

// Key schema for the Pebble snapshot store. This is a single-account
// simulator, so keys need no address component, unlike a multi-tenant
// exchange store.
//
//	bal:<token>                    -> Balance
//	pos:<instrument>:<side>         -> open Position
//	xpos:<positionId>               -> exited Position
//	ord:<instrument>:<side>:<cid>   -> open Order

const (
	prefixBalance      = "bal:"
	prefixPosition     = "pos:"
	prefixExitedPos    = "xpos:"
	prefixOrder        = "ord:"
)

func balanceKey(token string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixBalance, token))
}

func positionKey(instrument, side string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixPosition, instrument, side))
}

func positionPrefix() []byte {
	return []byte(prefixPosition)
}

func exitedPositionKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixExitedPos, id))
}

func exitedPositionPrefix() []byte {
	return []byte(prefixExitedPos)
}

func orderKey(instrument, side, cid string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixOrder, instrument, side, cid))
}

func orderPrefix() []byte {
	return []byte(prefixOrder)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
