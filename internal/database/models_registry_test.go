package database

import (
	"testing"

	"bookswap/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPersistentModels_ReferencedTablesFirst(t *testing.T) {
	order := make(map[string]int)
	for i, model := range PersistentModels() {
		switch model.(type) {
		case *models.User:
			order["users"] = i
		case *models.Book:
			order["books"] = i
		case *models.LoanRequest:
			order["book_requests"] = i
		case *models.Rating:
			order["ratings"] = i
		case *models.Dispute:
			order["disputes"] = i
		case *models.Message:
			order["messages"] = i
		case *models.Notification:
			order["notifications"] = i
		}
	}

	assert.Len(t, order, 7)
	assert.Less(t, order["users"], order["books"])
	assert.Less(t, order["books"], order["book_requests"])
	for _, dependent := range []string{"ratings", "disputes", "messages"} {
		assert.Less(t, order["book_requests"], order[dependent], dependent)
	}
}
