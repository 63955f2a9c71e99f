package draft

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/goliatone/go-draft/structural"
)

func tripList() shoppingList {
	return shoppingList{
		ID:    "list-3",
		Title: "Trip",
		Items: []shoppingItem{
			{ID: "a", Label: "Apples", Qty: 4},
			{ID: "b", Label: "Bread", Qty: 1},
			{ID: "c", Label: "Cheese", Qty: 1},
		},
	}
}

func TestAddItemMintsIDWhenMissing(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	id := addItem(t, sess, shoppingItem{Label: "Butter", Qty: 1})
	if id != "item-1" {
		t.Fatalf("unexpected minted id %q", id)
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"milk", "eggs", "item-1"}) {
		t.Fatalf("unexpected item order %v", got)
	}
	if !sess.ItemsDirty() {
		t.Fatalf("expected the add to dirty the collection")
	}
}

func TestAddItemKeepsProvidedID(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	id := addItem(t, sess, shoppingItem{ID: "butter", Label: "Butter", Qty: 1})
	if id != "butter" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestAddItemWithoutIDSupportFails(t *testing.T) {
	cfg := shoppingConfig(sourceFor(groceriesList()), nil)
	cfg.WithItemID = nil
	sess := newShoppingSession(t, cfg)
	loadList(t, sess, "list-1")

	if _, err := sess.AddItem(shoppingItem{Label: "Butter"}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if got := sess.ItemCount(); got != 2 {
		t.Fatalf("expected the refused add to leave the collection alone, got %d items", got)
	}
}

func TestAddItemRejectsDuplicateID(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	_, err := sess.AddItem(shoppingItem{ID: "milk", Label: "More milk"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if !strings.Contains(err.Error(), "milk") {
		t.Fatalf("expected the colliding id in the message, got %q", err.Error())
	}
	if got := sess.ItemCount(); got != 2 {
		t.Fatalf("expected the refused add to leave the collection alone, got %d items", got)
	}
}

func TestAddItemStoresACopy(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	item := shoppingItem{ID: "butter", Label: "Butter", Qty: 1}
	addItem(t, sess, item)
	item.Label = "Tampered"

	items := sess.Items()
	if got := items[len(items)-1].Label; got != "Butter" {
		t.Fatalf("expected the session to store a copy, got %q", got)
	}
}

func TestAddThenRemoveNetsClean(t *testing.T) {
	empty := shoppingList{ID: "list-2", Title: "Empty"}
	sess := newShoppingSession(t, shoppingConfig(sourceFor(empty), nil))
	loadList(t, sess, "list-2")

	id := addItem(t, sess, shoppingItem{Label: "Butter", Qty: 1})
	if !sess.ItemsDirty() {
		t.Fatalf("expected the add to dirty the collection")
	}
	if !sess.RemoveItem(id) {
		t.Fatalf("expected the remove to find the added item")
	}
	if sess.ItemsDirty() || sess.Dirty() {
		t.Fatalf("expected add then remove to net out clean")
	}
}

func TestAddThenRemoveNetsCleanInCreateMode(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(nil, nil))
	loadList(t, sess, "")

	id := addItem(t, sess, shoppingItem{Label: "Butter", Qty: 1})
	if !sess.RemoveItem(id) {
		t.Fatalf("expected the remove to find the added item")
	}
	if sess.Dirty() {
		t.Fatalf("expected add then remove to net out clean in create mode")
	}
}

func TestUpdateItemAppliesChanges(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	if !sess.UpdateItem("milk", func(item shoppingItem) shoppingItem {
		item.Qty = 2
		return item
	}) {
		t.Fatalf("expected the update to apply")
	}
	if got := sess.Items()[0].Qty; got != 2 {
		t.Fatalf("unexpected quantity %d", got)
	}
	if !sess.ItemsDirty() {
		t.Fatalf("expected the update to dirty the collection")
	}

	if sess.UpdateItem("ghost", func(item shoppingItem) shoppingItem { return item }) {
		t.Fatalf("expected an unknown id to be a no-op")
	}
	if sess.UpdateItem("milk", nil) {
		t.Fatalf("expected a nil callback to be a no-op")
	}
}

func TestUpdateItemRestoresIdentity(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	if !sess.UpdateItem("milk", func(item shoppingItem) shoppingItem {
		item.ID = "hijacked"
		return item
	}) {
		t.Fatalf("expected the update to apply with the id restored")
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"milk", "eggs"}) {
		t.Fatalf("expected item ids to stay stable, got %v", got)
	}
}

func TestUpdateItemIdentityChangeWithoutSetterFails(t *testing.T) {
	cfg := shoppingConfig(sourceFor(groceriesList()), nil)
	cfg.WithItemID = nil
	sess := newShoppingSession(t, cfg)
	loadList(t, sess, "list-1")

	if sess.UpdateItem("milk", func(item shoppingItem) shoppingItem {
		item.ID = "hijacked"
		item.Qty = 99
		return item
	}) {
		t.Fatalf("expected the identity change to be refused")
	}
	if got := sess.Items()[0]; got.ID != "milk" || got.Qty != 1 {
		t.Fatalf("expected the refused update to leave the item alone, got %+v", got)
	}
}

func TestPatchItemAssignsFields(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	found, err := sess.PatchItem("milk", map[string]any{"label": "Whole milk", "qty": 2})
	if err != nil || !found {
		t.Fatalf("unexpected patch outcome found=%v err=%v", found, err)
	}
	if got := sess.Items()[0]; got.Label != "Whole milk" || got.Qty != 2 {
		t.Fatalf("unexpected patched item %+v", got)
	}

	found, err = sess.PatchItem("ghost", map[string]any{"label": "x"})
	if found || err != nil {
		t.Fatalf("expected an unknown id to report found=false, got found=%v err=%v", found, err)
	}
}

func TestPatchItemRejectsBadFields(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	found, err := sess.PatchItem("milk", map[string]any{"qty": "plenty"})
	if !found || !errors.Is(err, structural.ErrIncompatibleValue) {
		t.Fatalf("expected ErrIncompatibleValue with found=true, got found=%v err=%v", found, err)
	}
	found, err = sess.PatchItem("milk", map[string]any{"color": "white"})
	if !found || !errors.Is(err, structural.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField with found=true, got found=%v err=%v", found, err)
	}
	if got := sess.Items()[0]; got.Qty != 1 || got.Label != "Milk" {
		t.Fatalf("expected failed patches to leave the item alone, got %+v", got)
	}
}

func TestPatchItemIdentitySemantics(t *testing.T) {
	cfg := shoppingConfig(sourceFor(groceriesList()), nil)
	cfg.WithItemID = nil
	sess := newShoppingSession(t, cfg)
	loadList(t, sess, "list-1")

	found, err := sess.PatchItem("milk", map[string]any{"id": "hijacked"})
	if !found || !errors.Is(err, ErrImmutableID) {
		t.Fatalf("expected ErrImmutableID with found=true, got found=%v err=%v", found, err)
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"milk", "eggs"}) {
		t.Fatalf("expected item ids to stay stable, got %v", got)
	}

	// With an id setter the original identity is reinstated silently.
	sess = newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")
	found, err = sess.PatchItem("milk", map[string]any{"id": "hijacked", "qty": 3})
	if !found || err != nil {
		t.Fatalf("unexpected patch outcome found=%v err=%v", found, err)
	}
	if got := sess.Items()[0]; got.ID != "milk" || got.Qty != 3 {
		t.Fatalf("expected the id to be reinstated and the rest applied, got %+v", got)
	}
}

func TestRemoveItemClosesTheGap(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(tripList()), nil))
	loadList(t, sess, "list-3")

	if !sess.RemoveItem("b") {
		t.Fatalf("expected the remove to apply")
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("unexpected item order %v", got)
	}
	if sess.RemoveItem("ghost") {
		t.Fatalf("expected an unknown id to be a no-op")
	}
}

func TestMoveItemSpliceSemantics(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		want     []string
	}{
		{name: "forward", from: "a", to: "c", want: []string{"b", "c", "a"}},
		{name: "backward", from: "c", to: "a", want: []string{"c", "a", "b"}},
		{name: "same position", from: "b", to: "b", want: []string{"a", "b", "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := newShoppingSession(t, shoppingConfig(sourceFor(tripList()), nil))
			loadList(t, sess, "list-3")

			if !sess.MoveItem(tc.from, tc.to) {
				t.Fatalf("expected the move to apply")
			}
			if got := workingItemIDs(sess); !slices.Equal(got, tc.want) {
				t.Fatalf("unexpected order after move: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestMoveItemUnknownIDs(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(tripList()), nil))
	loadList(t, sess, "list-3")

	if sess.MoveItem("a", "ghost") || sess.MoveItem("ghost", "a") {
		t.Fatalf("expected unknown ids to be a no-op")
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected the order to stay put, got %v", got)
	}
}

func TestMoveItemReorderRoundTripsClean(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	if !sess.MoveItem("milk", "eggs") {
		t.Fatalf("expected the move to apply")
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"eggs", "milk"}) {
		t.Fatalf("unexpected order after move: %v", got)
	}
	if !sess.ItemsDirty() || !sess.Dirty() {
		t.Fatalf("expected the reorder alone to dirty the session")
	}

	if !sess.MoveItem("milk", "eggs") {
		t.Fatalf("expected the move back to apply")
	}
	if sess.ItemsDirty() || sess.Dirty() {
		t.Fatalf("expected restoring the order to clear dirty state")
	}
}

func TestMoveItemIndexBounds(t *testing.T) {
	sess := newShoppingSession(t, shoppingConfig(sourceFor(groceriesList()), nil))
	loadList(t, sess, "list-1")

	if !sess.MoveItemIndex(0, 1) {
		t.Fatalf("expected the move to apply")
	}
	if got := workingItemIDs(sess); !slices.Equal(got, []string{"eggs", "milk"}) {
		t.Fatalf("unexpected order after move: %v", got)
	}
	for _, bounds := range [][2]int{{-1, 0}, {0, 2}, {2, 0}} {
		if sess.MoveItemIndex(bounds[0], bounds[1]) {
			t.Fatalf("expected out-of-range move %v to be refused", bounds)
		}
	}
}
