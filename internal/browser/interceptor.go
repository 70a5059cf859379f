package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockedResourceTypes are resource loads aborted during link extraction.
// Dropping them cuts render latency without affecting anchor visibility.
var blockedResourceTypes = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeImage:      true,
	proto.NetworkResourceTypeFont:       true,
	proto.NetworkResourceTypeMedia:      true,
	proto.NetworkResourceTypeStylesheet: true,
}

// BlockResources installs a hijack router on the page that aborts
// non-essential resource loads. The returned stop function must be called
// when the page is done; it is safe to call even if installation partially
// failed.
func BlockResources(page *rod.Page) (stop func(), err error) {
	router := page.HijackRequests()

	err = router.Add("*", "", func(hijack *rod.Hijack) {
		if blockedResourceTypes[hijack.Request.Type()] {
			hijack.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		hijack.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		// Continue without blocking if the router cannot be installed.
		return func() {}, err
	}

	go router.Run()
	return func() { _ = router.Stop() }, nil
}
