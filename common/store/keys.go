package store

// Key layout. Colon-separated segments, grouped so DestroyCollection can
// sweep a member's per-owner documents by prefix.

// MemberKey returns the key of a member record.
func MemberKey(idtag string) string {
	return "members:" + idtag
}

// CompositionKey returns the key of a composition record.
func CompositionKey(idtag string) string {
	return "compositions:" + idtag
}

// MemberNametagPrefix is the claim-key prefix of the global username scope.
const MemberNametagPrefix = "memberNametags"

// CompositionNametagPrefix returns the claim-key prefix of a member's
// composition nametag scope.
func CompositionNametagPrefix(ownerID string) string {
	return "members:" + ownerID + ":compositionNametags"
}

// HotlistKey is the key of the single ranked-list document.
const HotlistKey = "hotlist"
