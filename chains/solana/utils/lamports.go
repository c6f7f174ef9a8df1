package utils

// LamportsPerSol is the number of lamports in one SOL.
const LamportsPerSol = 1e9

// LamportsToSol converts lamports (uint64) to SOL (float64)
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSol
}

// AbsDiffLamports returns |a - b| without overflowing on large balances.
func AbsDiffLamports(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
