package ledger

// recomputeTotals must be called with the mutex held after anything that moves
// a membership, a price or the cash balance.
func (l *Ledger) recomputeTotals() {
	t := Totals{Cash: l.cash, NetWorth: l.cash}
	for chain, m := range l.memberships {
		t.TotalBalance += m.Tokens
		t.NetWorth += m.Tokens * l.stats[chain].Price
	}
	l.totals = t
}

// Totals returns the aggregate balance and net worth as of the last absorbed update.
func (l *Ledger) Totals() Totals {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.totals
}
