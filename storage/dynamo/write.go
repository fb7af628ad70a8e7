package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/storage"
)

// writeSet collects the transaction items of one batch. DynamoDB rejects a
// transaction that touches an item twice, so writes are keyed by item.
type writeSet struct {
	order  []string
	writes map[string]*write
}

type write struct {
	table  string
	key    map[string]types.AttributeValue
	item   map[string]types.AttributeValue
	update *updateExpr
	delete bool
}

func newWriteSet() *writeSet {
	return &writeSet{writes: make(map[string]*write)}
}

func (w *writeSet) slot(table string, key map[string]types.AttributeValue) (*write, bool) {
	id := itemID(table, key)
	if existing, ok := w.writes[id]; ok {
		return existing, true
	}
	wr := &write{table: table, key: key}
	w.writes[id] = wr
	w.order = append(w.order, id)
	return wr, false
}

func (w *writeSet) put(op storage.InsertRow) error {
	key, err := keyItem(op.Key)
	if err != nil {
		return fmt.Errorf("key of %s: %w", op.TableName, err)
	}
	wr, exists := w.slot(op.TableName, key)
	if exists {
		return fmt.Errorf("%w: insert into %s", ErrConflictingWrites, op.TableName)
	}

	item := make(map[string]types.AttributeValue, len(key)+len(op.Columns))
	for k, v := range key {
		item[k] = v
	}
	for k, v := range rawKeys(op.Key) {
		item[k] = v
	}
	for column, v := range op.Columns {
		if v == nil {
			continue
		}
		av, err := encodeAttr(v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", op.TableName, column, err)
		}
		item[column] = av
	}
	wr.item = item
	return nil
}

func (w *writeSet) update(op storage.UpdateRow) error {
	key, err := keyItem(op.Key)
	if err != nil {
		return fmt.Errorf("key of %s: %w", op.TableName, err)
	}
	wr, exists := w.slot(op.TableName, key)
	if exists && wr.update == nil {
		return fmt.Errorf("%w: update of %s", ErrConflictingWrites, op.TableName)
	}
	if wr.update == nil {
		wr.update = newUpdateExpr()
		for column, raw := range rawKeys(op.Key) {
			wr.update.set(column, raw)
		}
	}
	for _, m := range op.Mutations {
		if err := wr.update.apply(m); err != nil {
			return fmt.Errorf("update %s: %w", op.TableName, err)
		}
	}
	return nil
}

func (w *writeSet) delete(table string, keys []storage.Key) error {
	key, err := keyItem(keys)
	if err != nil {
		return fmt.Errorf("key of %s: %w", table, err)
	}
	return w.deleteItem(table, key)
}

func (w *writeSet) deleteItem(table string, key map[string]types.AttributeValue) error {
	wr, exists := w.slot(table, key)
	if exists && !wr.delete {
		return fmt.Errorf("%w: delete from %s", ErrConflictingWrites, table)
	}
	wr.delete = true
	return nil
}

func (w *writeSet) items() ([]types.TransactWriteItem, error) {
	items := make([]types.TransactWriteItem, 0, len(w.order))
	for _, id := range w.order {
		wr := w.writes[id]
		switch {
		case wr.delete:
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(wr.table),
					Key:       wr.key,
				},
			})
		case wr.item != nil:
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(wr.table),
					Item:      wr.item,
				},
			})
		case wr.update != nil:
			expr := wr.update.expression()
			if expr == "" {
				continue
			}
			update := &types.Update{
				TableName:                aws.String(wr.table),
				Key:                      wr.key,
				UpdateExpression:         aws.String(expr),
				ExpressionAttributeNames: wr.update.names,
			}
			if len(wr.update.values) > 0 {
				update.ExpressionAttributeValues = wr.update.values
			}
			items = append(items, types.TransactWriteItem{Update: update})
		default:
			return nil, fmt.Errorf("lattice: empty write to %s", wr.table)
		}
	}
	return items, nil
}

// updateExpr accumulates one UpdateExpression with its placeholders.
type updateExpr struct {
	names   map[string]string
	values  map[string]types.AttributeValue
	sets    []string
	removes []string
}

func newUpdateExpr() *updateExpr {
	return &updateExpr{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

func (u *updateExpr) name(n string) string {
	p := fmt.Sprintf("#n%d", len(u.names))
	u.names[p] = n
	return p
}

func (u *updateExpr) value(av types.AttributeValue) string {
	p := fmt.Sprintf(":v%d", len(u.values))
	u.values[p] = av
	return p
}

func (u *updateExpr) set(column string, av types.AttributeValue) {
	u.sets = append(u.sets, fmt.Sprintf("%s = %s", u.name(column), u.value(av)))
}

func (u *updateExpr) setPath(column, member string, av types.AttributeValue) {
	u.sets = append(u.sets, fmt.Sprintf("%s.%s = %s", u.name(column), u.name(member), u.value(av)))
}

func (u *updateExpr) remove(column string) {
	u.removes = append(u.removes, u.name(column))
}

func (u *updateExpr) removePath(column, member string) {
	u.removes = append(u.removes, fmt.Sprintf("%s.%s", u.name(column), u.name(member)))
}

// apply adds one mutation. Element and entry changes address members of the
// stored M attribute, so the column must already hold one.
func (u *updateExpr) apply(m storage.Mutation) error {
	switch t := m.(type) {
	case storage.SetColumn:
		if t.Value == nil {
			u.remove(t.Column)
			return nil
		}
		av, err := encodeAttr(t.Value)
		if err != nil {
			return fmt.Errorf("column %s: %w", t.Column, err)
		}
		u.set(t.Column, av)
	case storage.AddElements:
		for _, e := range t.Elements {
			u.setPath(t.Column, memberName(e), &types.AttributeValueMemberBOOL{Value: true})
		}
	case storage.RemoveElements:
		for _, e := range t.Elements {
			u.removePath(t.Column, memberName(e))
		}
	case storage.PutEntries:
		for _, e := range t.Entries {
			av, err := scalarAttr(e.Value)
			if err != nil {
				return fmt.Errorf("column %s: %w", t.Column, err)
			}
			u.setPath(t.Column, memberName(e.Key), av)
		}
	case storage.DeleteKeys:
		for _, k := range t.Keys {
			u.removePath(t.Column, memberName(k))
		}
	default:
		return fmt.Errorf("lattice: unsupported mutation %T", m)
	}
	return nil
}

func (u *updateExpr) expression() string {
	var clauses []string
	if len(u.sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(u.sets, ", "))
	}
	if len(u.removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(u.removes, ", "))
	}
	return strings.Join(clauses, " ")
}
