package strategy

// Builtins returns the strategies shipped with the engine, in
// registration order. Order matters: it is the final ranking
// tie-breaker.
func Builtins() []Strategy {
	return []Strategy{
		UnusedAsync(),
		FloatCmp(),
		WildcardImport(),
		SortUnstable(),
		MissingDocs(),
	}
}
