package board_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/opencork/corkboard/board"
	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

const owner = "user-1"

func newService(t *testing.T) (*board.Service, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return board.NewService(m, board.DefaultConfig(), nil), m
}

func mustBoard(t *testing.T, svc *board.Service) *board.Board {
	t.Helper()
	b, err := svc.CreateBoard(context.Background(), board.CreateBoardParams{
		Name:  "Project Pigeon",
		Owner: owner,
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func mustColumn(t *testing.T, svc *board.Service, boardID, name string) *board.Column {
	t.Helper()
	col, err := svc.CreateColumn(context.Background(), boardID, name)
	if err != nil {
		t.Fatalf("create column %s: %v", name, err)
	}
	return col
}

func mustCard(t *testing.T, svc *board.Service, boardID, columnID, title string) *board.Card {
	t.Helper()
	res, err := svc.CreateCard(context.Background(), board.CreateCardParams{
		BoardID:  boardID,
		ColumnID: columnID,
		Title:    title,
	})
	if err != nil {
		t.Fatalf("create card %s: %v", title, err)
	}
	return res.Card
}

func columnsOrder(t *testing.T, svc *board.Service, boardID string) []string {
	t.Helper()
	view, err := svc.GetBoard(context.Background(), boardID, owner)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	return view.Board.ColumnsOrder
}

// --- boards ---

func TestCreateBoard(t *testing.T) {
	svc, _ := newService(t)

	b, err := svc.CreateBoard(context.Background(), board.CreateBoardParams{
		Name:        "  Project Pigeon  ",
		Description: "roadmap",
		Owner:       owner,
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	if b.ID == "" {
		t.Error("expected an allocated id")
	}
	if b.Name != "Project Pigeon" {
		t.Errorf("expected trimmed name, got %q", b.Name)
	}
	if len(b.ColumnsOrder) != 0 {
		t.Errorf("expected empty columnsOrder, got %v", b.ColumnsOrder)
	}
	if b.Version != 1 {
		t.Errorf("expected version 1, got %d", b.Version)
	}
}

func TestCreateBoard_Validation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name   string
		params board.CreateBoardParams
		field  string
	}{
		{"empty name", board.CreateBoardParams{Name: "", Owner: owner}, "name"},
		{"blank name", board.CreateBoardParams{Name: "   ", Owner: owner}, "name"},
		{"no owner", board.CreateBoardParams{Name: "x"}, "owner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBoard(context.Background(), tt.params)
			var validation *board.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validation.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, validation.Field)
			}
		})
	}
}

func TestUpdateBoard(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)

	name := "Renamed"
	updated, err := svc.UpdateBoard(context.Background(), b.ID, board.BoardUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update board: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("expected renamed board, got %q", updated.Name)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
}

func TestUpdateBoard_ImmutableFields(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)

	otherID := "different"
	_, err := svc.UpdateBoard(context.Background(), b.ID, board.BoardUpdate{ID: &otherID})
	var immutable *board.ImmutableFieldError
	if !errors.As(err, &immutable) || immutable.Field != "id" {
		t.Errorf("expected ImmutableFieldError on id, got %v", err)
	}

	otherOwner := "someone-else"
	_, err = svc.UpdateBoard(context.Background(), b.ID, board.BoardUpdate{Owner: &otherOwner})
	if !errors.As(err, &immutable) || immutable.Field != "owner" {
		t.Errorf("expected ImmutableFieldError on owner, got %v", err)
	}

	// Repeating the current value is a no-op, not a violation.
	sameOwner := owner
	if _, err := svc.UpdateBoard(context.Background(), b.ID, board.BoardUpdate{Owner: &sameOwner}); err != nil {
		t.Errorf("expected same-value update to pass, got %v", err)
	}
}

func TestUpdateBoard_ReorderColumns(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)
	c1 := mustColumn(t, svc, b.ID, "TODO")
	c2 := mustColumn(t, svc, b.ID, "Done")

	updated, err := svc.UpdateBoard(context.Background(), b.ID, board.BoardUpdate{
		ColumnsOrder: []string{c2.ID, c1.ID},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if updated.ColumnsOrder[0] != c2.ID || updated.ColumnsOrder[1] != c1.ID {
		t.Errorf("unexpected order: %v", updated.ColumnsOrder)
	}
}

func TestUpdateBoard_InvalidReorderLeavesOrderUnchanged(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)
	c1 := mustColumn(t, svc, b.ID, "TODO")
	c2 := mustColumn(t, svc, b.ID, "Done")

	// Proposal drops c2.
	_, err := svc.UpdateBoard(context.Background(), b.ID, board.BoardUpdate{
		ColumnsOrder: []string{c1.ID},
	})
	var invalid *ordering.InvalidOrderError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOrderError, got %v", err)
	}
	if len(invalid.Missing) != 1 || invalid.Missing[0] != c2.ID {
		t.Errorf("expected missing [%s], got %v", c2.ID, invalid.Missing)
	}

	got := columnsOrder(t, svc, b.ID)
	if len(got) != 2 || got[0] != c1.ID || got[1] != c2.ID {
		t.Errorf("stored order changed: %v", got)
	}
}

func TestGetBoard_OwnershipCheck(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)

	if _, err := svc.GetBoard(context.Background(), b.ID, owner); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err := svc.GetBoard(context.Background(), b.ID, "intruder")
	var notFound *board.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError for non-owner, got %v", err)
	}
}

func TestListBoards(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateBoard(ctx, board.CreateBoardParams{Name: fmt.Sprintf("b%d", i), Owner: owner}); err != nil {
			t.Fatalf("create board: %v", err)
		}
	}
	if _, err := svc.CreateBoard(ctx, board.CreateBoardParams{Name: "other", Owner: "someone-else"}); err != nil {
		t.Fatalf("create board: %v", err)
	}

	mine, err := svc.ListBoards(ctx, owner)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(mine) != 3 {
		t.Errorf("expected 3 boards, got %d", len(mine))
	}
	for _, b := range mine {
		if b.Owner != owner {
			t.Errorf("foreign board in listing: %+v", b)
		}
	}
}

// --- columns ---

func TestCreateColumn_AppendsToOrder(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)

	c1 := mustColumn(t, svc, b.ID, "TODO")
	c2 := mustColumn(t, svc, b.ID, "InProgress")
	c3 := mustColumn(t, svc, b.ID, "Done")

	got := columnsOrder(t, svc, b.ID)
	want := []string{c1.ID, c2.ID, c3.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestCreateColumn_BoardMissing(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateColumn(context.Background(), "ghost", "TODO")
	var notFound *board.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestCreateColumn_EmptyName(t *testing.T) {
	svc, st := newService(t)
	b := mustBoard(t, svc)

	_, err := svc.CreateColumn(context.Background(), b.ID, "  ")
	var validation *board.ValidationError
	if !errors.As(err, &validation) || validation.Field != "name" {
		t.Fatalf("expected ValidationError on name, got %v", err)
	}

	// No column record was left behind.
	cols, err := st.ListByParent(context.Background(), store.KindColumn, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cols) != 0 {
		t.Errorf("expected no columns, got %d", len(cols))
	}
}

func TestDeleteColumn_CascadesToCards(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	b := mustBoard(t, svc)
	col := mustColumn(t, svc, b.ID, "TODO")
	keep := mustColumn(t, svc, b.ID, "Done")
	card := mustCard(t, svc, b.ID, col.ID, "write spec")

	if err := svc.DeleteColumn(ctx, col.ID); err != nil {
		t.Fatalf("delete column: %v", err)
	}

	if _, err := st.Get(ctx, store.KindCard, card.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected card to be cascade-deleted, got %v", err)
	}
	if _, err := st.Get(ctx, store.KindColumn, col.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected column to be deleted, got %v", err)
	}

	got := columnsOrder(t, svc, b.ID)
	if len(got) != 1 || got[0] != keep.ID {
		t.Errorf("expected columnsOrder [%s], got %v", keep.ID, got)
	}
}

// --- permutation invariants (randomized sequences of create/delete) ---

func TestColumnsOrderStaysPermutationOfLiveColumns(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	b := mustBoard(t, svc)

	live := map[string]bool{}
	var ids []string
	for i := 0; i < 8; i++ {
		col := mustColumn(t, svc, b.ID, fmt.Sprintf("col-%d", i))
		live[col.ID] = true
		ids = append(ids, col.ID)
	}
	for i, id := range ids {
		if i%3 == 0 {
			if err := svc.DeleteColumn(ctx, id); err != nil {
				t.Fatalf("delete column: %v", err)
			}
			delete(live, id)
		}
	}

	order := columnsOrder(t, svc, b.ID)
	if len(order) != len(live) {
		t.Fatalf("order has %d entries, %d live columns", len(order), len(live))
	}
	seen := map[string]bool{}
	for _, id := range order {
		if !live[id] {
			t.Errorf("order references dead or foreign column %s", id)
		}
		if seen[id] {
			t.Errorf("duplicate entry %s", id)
		}
		seen[id] = true
	}

	// Cross-check against the store's own view of live columns.
	recs, err := st.ListByParent(ctx, store.KindColumn, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != len(order) {
		t.Errorf("store has %d live columns, order has %d", len(recs), len(order))
	}
}

func TestCardsOrderStaysPermutationOfLiveCards(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	b := mustBoard(t, svc)
	col := mustColumn(t, svc, b.ID, "TODO")

	live := map[string]bool{}
	var ids []string
	for i := 0; i < 10; i++ {
		card := mustCard(t, svc, b.ID, col.ID, fmt.Sprintf("card-%d", i))
		live[card.ID] = true
		ids = append(ids, card.ID)
	}
	for i, id := range ids {
		if i%2 == 0 {
			if err := svc.DeleteCard(ctx, id); err != nil {
				t.Fatalf("delete card: %v", err)
			}
			delete(live, id)
		}
	}

	got, err := svc.GetBoard(ctx, b.ID, owner)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	order := got.Columns[0].Column.CardsOrder
	if len(order) != len(live) {
		t.Fatalf("order has %d entries, %d live cards", len(order), len(live))
	}
	for _, id := range order {
		if !live[id] {
			t.Errorf("order references dead card %s", id)
		}
	}

	recs, err := st.ListByParent(ctx, store.KindCard, col.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != len(order) {
		t.Errorf("store has %d live cards, order has %d", len(recs), len(order))
	}
}

// --- board cascade ---

func TestDeleteBoard_RemovesAllDescendants(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	b := mustBoard(t, svc)

	var columns []*board.Column
	for i := 0; i < 3; i++ {
		col := mustColumn(t, svc, b.ID, fmt.Sprintf("col-%d", i))
		columns = append(columns, col)
		for j := 0; j < 2; j++ {
			mustCard(t, svc, b.ID, col.ID, fmt.Sprintf("card-%d-%d", i, j))
		}
	}

	if err := svc.DeleteBoard(ctx, b.ID); err != nil {
		t.Fatalf("delete board: %v", err)
	}

	if _, err := st.Get(ctx, store.KindBoard, b.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected board gone, got %v", err)
	}
	for _, col := range columns {
		if _, err := st.Get(ctx, store.KindColumn, col.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected column %s gone, got %v", col.ID, err)
		}
		cards, err := st.ListByParent(ctx, store.KindCard, col.ID)
		if err != nil {
			t.Fatalf("list cards: %v", err)
		}
		if len(cards) != 0 {
			t.Errorf("expected no cards under %s, got %d", col.ID, len(cards))
		}
	}
}

func TestDeleteBoard_Missing(t *testing.T) {
	svc, _ := newService(t)

	err := svc.DeleteBoard(context.Background(), "ghost")
	var notFound *board.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// --- cards ---

func TestCreateCard_EmptyTitleLeavesNoTrace(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	b := mustBoard(t, svc)
	col := mustColumn(t, svc, b.ID, "TODO")

	_, err := svc.CreateCard(ctx, board.CreateCardParams{
		BoardID:  b.ID,
		ColumnID: col.ID,
		Title:    "   ",
	})
	var validation *board.ValidationError
	if !errors.As(err, &validation) || validation.Field != "title" {
		t.Fatalf("expected ValidationError on title, got %v", err)
	}

	cards, err := st.ListByParent(ctx, store.KindCard, col.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("expected no card records, got %d", len(cards))
	}
	got, err := svc.GetBoard(ctx, b.ID, owner)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if len(got.Columns[0].Column.CardsOrder) != 0 {
		t.Errorf("expected untouched cardsOrder, got %v", got.Columns[0].Column.CardsOrder)
	}
}

func TestCreateCard_ColumnFromOtherBoard(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	b1 := mustBoard(t, svc)
	b2, err := svc.CreateBoard(ctx, board.CreateBoardParams{Name: "Other", Owner: owner})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	foreign := mustColumn(t, svc, b2.ID, "TODO")

	_, err = svc.CreateCard(ctx, board.CreateCardParams{
		BoardID:  b1.ID,
		ColumnID: foreign.ID,
		Title:    "misfiled",
	})
	var notFound *board.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError for foreign column, got %v", err)
	}
}

func TestUpdateCard_ImmutableColumnID(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)
	col := mustColumn(t, svc, b.ID, "TODO")
	other := mustColumn(t, svc, b.ID, "Done")
	card := mustCard(t, svc, b.ID, col.ID, "task")

	_, err := svc.UpdateCard(context.Background(), card.ID, board.CardUpdate{ColumnID: &other.ID})
	var immutable *board.ImmutableFieldError
	if !errors.As(err, &immutable) || immutable.Field != "columnId" {
		t.Errorf("expected ImmutableFieldError on columnId, got %v", err)
	}
}

func TestUpdateCard_TitleAndDescription(t *testing.T) {
	svc, _ := newService(t)
	b := mustBoard(t, svc)
	col := mustColumn(t, svc, b.ID, "TODO")
	card := mustCard(t, svc, b.ID, col.ID, "task")

	title := "  retitled  "
	desc := "details"
	updated, err := svc.UpdateCard(context.Background(), card.ID, board.CardUpdate{
		Title:       &title,
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("update card: %v", err)
	}
	if updated.Title != "retitled" || updated.Description != "details" {
		t.Errorf("unexpected card after update: %+v", updated)
	}
}

// --- full scenario ---

func TestScenario_ProjectPigeon(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	b := mustBoard(t, svc)
	todo := mustColumn(t, svc, b.ID, "TODO")
	inProgress := mustColumn(t, svc, b.ID, "InProgress")
	done := mustColumn(t, svc, b.ID, "Done")

	got := columnsOrder(t, svc, b.ID)
	want := []string{todo.ID, inProgress.ID, done.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected columnsOrder %v, got %v", want, got)
		}
	}

	card := mustCard(t, svc, b.ID, todo.ID, "Write the TODO specification")

	moved, err := svc.MoveCard(ctx, card.ID, inProgress.ID, 0)
	if err != nil {
		t.Fatalf("move card: %v", err)
	}
	if moved.ColumnID != inProgress.ID {
		t.Errorf("expected card in InProgress, got %s", moved.ColumnID)
	}

	view, err := svc.GetBoard(ctx, b.ID, owner)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if n := len(view.Columns[0].Column.CardsOrder); n != 0 {
		t.Errorf("expected empty TODO cardsOrder, got %d entries", n)
	}
	if o := view.Columns[1].Column.CardsOrder; len(o) != 1 || o[0] != card.ID {
		t.Errorf("expected InProgress cardsOrder [%s], got %v", card.ID, o)
	}

	if err := svc.DeleteColumn(ctx, inProgress.ID); err != nil {
		t.Fatalf("delete column: %v", err)
	}
	if _, err := st.Get(ctx, store.KindCard, card.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected moved card cascade-deleted, got %v", err)
	}
	got = columnsOrder(t, svc, b.ID)
	if len(got) != 2 || got[0] != todo.ID || got[1] != done.ID {
		t.Errorf("expected columnsOrder [TODO, Done], got %v", got)
	}
}

// --- error mapping ---

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", &board.ValidationError{Field: "name"}, http.StatusUnprocessableEntity},
		{"not found", &board.NotFoundError{Kind: store.KindBoard, ID: "x"}, http.StatusNotFound},
		{"immutable", &board.ImmutableFieldError{Field: "boardId"}, http.StatusConflict},
		{"invalid order", &ordering.InvalidOrderError{Missing: []string{"a"}}, http.StatusBadRequest},
		{"cross board", board.ErrCrossBoardMove, http.StatusConflict},
		{"conflict", board.ErrConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := board.HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
