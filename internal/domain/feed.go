package domain

import "fmt"

// FeedURI builds the AT-URI of a feed generator record: every processor's
// URI() is this applied to the configured publisher DID and the processor's
// own feed name (e.g. "helloworld").
func FeedURI(publisherDID, feedName string) string {
	return fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", publisherDID, feedName)
}

// FeedSkeleton is the response body for getFeedSkeleton.
type FeedSkeleton struct {
	Feed   []SkeletonPost `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

// SkeletonPost is a single entry in a feed skeleton.
type SkeletonPost struct {
	// Post is the AT-URI of the post.
	Post string `json:"post"`
}

// FeedDescription describes a single feed served by this generator.
type FeedDescription struct {
	// URI is the AT-URI of the feed generator record.
	URI string `json:"uri"`
}

// GeneratorDescription is the response body for describeFeedGenerator.
type GeneratorDescription struct {
	DID   string            `json:"did"`
	Feeds []FeedDescription `json:"feeds"`
}
