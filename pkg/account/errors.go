package account

import "errors"

// ErrNoFeedAttached is returned by LetItRoll when no feed.Source has been
// attached yet via AttachFeed.
var ErrNoFeedAttached = errors.New("account: LetItRoll called with no feed attached")
