package eeipc

// The following operations have no counterpart on this wire. Each
// rejects immediately with CodeNotImplemented, without ever touching
// the socket — unlike a failed command, these never reach the EE and
// never appear in command metrics.

// AntiCacheInitialize would configure the EE's anti-cache eviction
// subsystem. Never implemented on this wire.
func (d *Driver) AntiCacheInitialize(dbDir string, blockSize uint32) error {
	return notImplementedError("AntiCacheInitialize")
}

// AntiCacheReadBlocks would pull evicted blocks back into memory.
// Never implemented on this wire.
func (d *Driver) AntiCacheReadBlocks(tableID uint32, blockIDs []uint64) error {
	return notImplementedError("AntiCacheReadBlocks")
}

// AntiCacheEvictBlock would evict a table's cold data to disk. Never
// implemented on this wire.
func (d *Driver) AntiCacheEvictBlock(tableID uint32, blockSize uint32) error {
	return notImplementedError("AntiCacheEvictBlock")
}

// ExtractTable would pull a whole table out of the EE for offline
// inspection. Never implemented on this wire.
func (d *Driver) ExtractTable(tableID uint32) ([]byte, error) {
	return nil, notImplementedError("ExtractTable")
}

// LoadTableFromFile would bulk-load a table directly from a file path
// known to the EE process rather than over the wire. Never
// implemented on this wire.
func (d *Driver) LoadTableFromFile(tableID uint32, path string) error {
	return notImplementedError("LoadTableFromFile")
}
