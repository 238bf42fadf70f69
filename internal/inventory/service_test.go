package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/inventory/inventorytest"
	"github.com/bookhaven/bookhaven/internal/shared"
)

type auditSpy struct {
	logs []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestServiceApplyTransactionRecordsAudit(t *testing.T) {
	store := inventorytest.NewStore()
	store.SetStock(1, 0)
	audit := &auditSpy{}
	svc := inventory.NewService(store, audit, nil, nil)

	header, err := svc.ApplyTransaction(context.Background(), inventory.ApplyInput{
		Type:          inventory.TransactionTypeIn,
		ReferenceType: inventory.ReferenceManual,
		Items:         []inventory.ItemInput{{ProductID: 1, ChangeType: inventory.ChangePlus, Quantity: 12, UnitPrice: price(40000)}},
		Note:          "supplier delivery",
		ActorID:       9,
	})
	require.NoError(t, err)
	require.NotZero(t, header.ID)
	require.Equal(t, 12, store.Stock(1))
	require.Len(t, audit.logs, 1)
	require.Equal(t, "inventory:IN", audit.logs[0].Action)
	require.Equal(t, int64(9), audit.logs[0].ActorID)
}

func TestServiceRejectsBeforeTouchingStore(t *testing.T) {
	store := inventorytest.NewStore()
	store.SetStock(1, 4)
	audit := &auditSpy{}
	svc := inventory.NewService(store, audit, nil, nil)

	_, err := svc.ApplyTransaction(context.Background(), inventory.ApplyInput{
		Type:          inventory.TransactionTypeDamaged,
		ReferenceType: inventory.ReferenceManual,
		Items:         []inventory.ItemInput{{ProductID: 1, ChangeType: inventory.ChangePlus, Quantity: 1}},
	})
	require.ErrorIs(t, err, inventory.ErrInvalidChangeType)
	require.Empty(t, store.Headers())
	require.Empty(t, audit.logs)
	require.Equal(t, 4, store.Stock(1))
}

func TestServiceListAndStockCard(t *testing.T) {
	store := inventorytest.NewStore()
	store.SetStock(1, 0)
	store.SetStock(2, 0)
	svc := inventory.NewService(store, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.ApplyTransaction(ctx, inventory.ApplyInput{
			Type:          inventory.TransactionTypeIn,
			ReferenceType: inventory.ReferenceManual,
			Items:         []inventory.ItemInput{{ProductID: 1, ChangeType: inventory.ChangePlus, Quantity: 2, UnitPrice: price(1000)}},
		})
		require.NoError(t, err)
	}
	_, err := svc.ApplyTransaction(ctx, inventory.ApplyInput{
		Type:          inventory.TransactionTypeIn,
		ReferenceType: inventory.ReferenceManual,
		Items:         []inventory.ItemInput{{ProductID: 2, ChangeType: inventory.ChangePlus, Quantity: 5, UnitPrice: price(1000)}},
	})
	require.NoError(t, err)

	headers, page, err := svc.ListTransactions(ctx, inventory.ListFilter{ProductID: 1, Page: shared.PageRequest{Page: 1, PerPage: 2}})
	require.NoError(t, err)
	require.Len(t, headers, 2)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.TotalPages)

	_, _, err = svc.ListTransactions(ctx, inventory.ListFilter{Type: "MOVE"})
	require.ErrorIs(t, err, inventory.ErrInvalidTransactionType)

	card, err := svc.StockCard(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, card, 2)
	require.Equal(t, 6, card[1].Balance)

	_, err = svc.GetTransaction(ctx, 999)
	require.ErrorIs(t, err, inventory.ErrTransactionNotFound)
}
