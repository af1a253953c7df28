package syncengine

// resolve implements spec §4.5 step 4: assigns a Resolution to every
// ConflictInfo according to the pair's configured ConflictStrategy.
// newerWins compares modification time, with ties broken first by size and
// then, if still tied, by favoring the localToExternal direction.
func resolve(conflicts []ConflictInfo, strategy ConflictStrategy, direction Direction) []ConflictInfo {
	resolved := make([]ConflictInfo, len(conflicts))
	for i, c := range conflicts {
		c.Resolution = resolveOne(c, strategy, direction)
		resolved[i] = c
	}
	return resolved
}

func resolveOne(c ConflictInfo, strategy ConflictStrategy, direction Direction) Resolution {
	switch strategy {
	case StrategyKeepLocal:
		return ResolutionKeepLocal
	case StrategyKeepExternal:
		return ResolutionKeepExternal
	case StrategyLocalWinsWithBackup:
		return ResolutionLocalWinsWithBackup
	case StrategyExternalWinsWithBackup:
		return ResolutionExternalWinsWithBackup
	case StrategyKeepBoth:
		return ResolutionKeepBoth
	case StrategyManual:
		return ResolutionSkip
	case StrategyNewerWins:
		return newerWins(c, direction)
	default:
		return ResolutionSkip
	}
}

// newerWins implements spec §4.5 step 4's "newerWins" comparator: compare
// modification time; ties break by size, then by localToExternal direction.
func newerWins(c ConflictInfo, direction Direction) Resolution {
	if c.LocalMeta == nil || c.ExternalMeta == nil {
		return ResolutionSkip
	}

	if c.LocalMeta.ModTime.After(c.ExternalMeta.ModTime) {
		return ResolutionKeepLocal
	}
	if c.ExternalMeta.ModTime.After(c.LocalMeta.ModTime) {
		return ResolutionKeepExternal
	}

	if c.LocalMeta.Size != c.ExternalMeta.Size {
		if c.LocalMeta.Size > c.ExternalMeta.Size {
			return ResolutionKeepLocal
		}
		return ResolutionKeepExternal
	}

	if direction == DirectionLocalToExternal {
		return ResolutionKeepLocal
	}
	return ResolutionKeepExternal
}
