package api

const (
	OpAdd            = "Add"
	OpAddUnique      = "AddUnique"
	OpRemove         = "Remove"
	OpAddRelation    = "AddRelation"
	OpRemoveRelation = "RemoveRelation"
	OpIncrement      = "Increment"
	OpDelete         = "Delete"
)

// RelationOp is assigned to a relation field to add or remove members.
type RelationOp struct {
	Op      string    `json:"__op"`
	Objects []Pointer `json:"objects"`
}

func AddRelation(className string, objectIDs ...string) RelationOp {
	return relationOp(OpAddRelation, className, objectIDs)
}

func RemoveRelation(className string, objectIDs ...string) RelationOp {
	return relationOp(OpRemoveRelation, className, objectIDs)
}

func relationOp(op, className string, objectIDs []string) RelationOp {
	pointers := make([]Pointer, 0, len(objectIDs))
	for _, id := range objectIDs {
		pointers = append(pointers, NewPointer(className, id))
	}
	return RelationOp{
		Op:      op,
		Objects: pointers,
	}
}

// ArrayOp is assigned to an array field to modify it in place.
type ArrayOp struct {
	Op      string `json:"__op"`
	Objects []any  `json:"objects"`
}

func Add(items ...any) ArrayOp {
	return ArrayOp{Op: OpAdd, Objects: nonNil(items)}
}

func AddUnique(items ...any) ArrayOp {
	return ArrayOp{Op: OpAddUnique, Objects: nonNil(items)}
}

func Remove(items ...any) ArrayOp {
	return ArrayOp{Op: OpRemove, Objects: nonNil(items)}
}

type IncrementOp struct {
	Op     string  `json:"__op"`
	Amount float64 `json:"amount"`
}

func Increment(amount float64) IncrementOp {
	return IncrementOp{Op: OpIncrement, Amount: amount}
}

type DeleteOp struct {
	Op string `json:"__op"`
}

func DeleteField() DeleteOp {
	return DeleteOp{Op: OpDelete}
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}
