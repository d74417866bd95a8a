package notify

import (
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

// Parties carries everything the message templates mention.
type Parties struct {
	TransactionID int64
	Item          model.Item
	Quantity      int
	Borrower      model.Employee
	Owner         model.Employee
}

func itemLabel(item model.Item) string {
	if item.PropertyNo != "" {
		return fmt.Sprintf("%s (%s)", item.Description, item.PropertyNo)
	}
	return item.Description
}

// BorrowMessages renders the messages for a new borrow request: one for the
// admin, one for the owner and one for the borrower who asked.
func BorrowMessages(p Parties) (admin, owner, requester string) {
	item := itemLabel(p.Item)
	borrower := p.Borrower.DisplayName()
	holder := p.Owner.DisplayName()

	admin = fmt.Sprintf("Borrow request #%d: %s requests %d x %s from %s. Awaiting your approval.",
		p.TransactionID, borrower, p.Quantity, item, holder)
	owner = fmt.Sprintf("%s wants to borrow %d x %s from you. Request #%d is pending approval.",
		borrower, p.Quantity, item, p.TransactionID)
	requester = fmt.Sprintf("Your request to borrow %d x %s from %s was submitted and is pending approval (request #%d).",
		p.Quantity, item, holder, p.TransactionID)
	return admin, owner, requester
}

// LendMessages renders the messages for a new lend offer: one for the admin,
// one for the borrower and one for the lender who offered.
func LendMessages(p Parties) (admin, borrower, lender string) {
	item := itemLabel(p.Item)
	to := p.Borrower.DisplayName()
	from := p.Owner.DisplayName()

	admin = fmt.Sprintf("Lend request #%d: %s offers to lend %d x %s to %s. Awaiting your approval.",
		p.TransactionID, from, p.Quantity, item, to)
	borrower = fmt.Sprintf("%s wants to lend you %d x %s. Request #%d is pending approval.",
		from, p.Quantity, item, p.TransactionID)
	lender = fmt.Sprintf("Your offer to lend %d x %s to %s was submitted and is pending approval (request #%d).",
		p.Quantity, item, to, p.TransactionID)
	return admin, borrower, lender
}

// DecisionMessage renders the message a borrower receives when a
// transaction changes status.
func DecisionMessage(p Parties, status model.Status) string {
	verb := string(status)
	if status == model.StatusReturned {
		verb = "marked as returned"
	}
	return fmt.Sprintf("Request #%d for %d x %s from %s was %s.",
		p.TransactionID, p.Quantity, itemLabel(p.Item), p.Owner.DisplayName(), verb)
}
