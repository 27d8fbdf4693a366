package credit

// planDeductions walks active lots in FIFO order (oldest purchase first —
// the order the repository selects them in) and allocates amount across
// them. It is all-or-nothing: when the lots cannot cover the full amount
// it returns ErrInsufficientCredits and no plan.
func planDeductions(lots []Transaction, amount int64) ([]Deduction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var available int64
	for i := range lots {
		if lots[i].Status == StatusActive {
			available += lots[i].CreditsRemaining
		}
	}
	if available < amount {
		return nil, ErrInsufficientCredits
	}

	plan := make([]Deduction, 0, 2)
	remaining := amount
	for i := range lots {
		if remaining == 0 {
			break
		}
		lot := &lots[i]
		if lot.Status != StatusActive || lot.CreditsRemaining == 0 {
			continue
		}

		take := lot.CreditsRemaining
		if take > remaining {
			take = remaining
		}

		plan = append(plan, Deduction{TransactionID: lot.ID, Amount: take})
		remaining -= take
	}

	return plan, nil
}
