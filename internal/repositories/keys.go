package repositories

// Every room owns four keys; dependents share the metadata key's expiration.
func metaKey(roomID string) string     { return "meta:" + roomID }
func membersKey(roomID string) string  { return "members:" + roomID }
func messagesKey(roomID string) string { return "messages:" + roomID }
func presenceKey(roomID string) string { return "presence:" + roomID }

func dependentKeys(roomID string) []string {
	return []string{membersKey(roomID), messagesKey(roomID), presenceKey(roomID)}
}
