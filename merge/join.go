//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

package merge

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/ingest/core"
)

// Suffixes applied to non-key columns present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// LeftJoin joins right onto left where left[key] equals right[key].
//
// Every left row is kept, in order. A left row matching several right rows is
// repeated once per match, in right-table order. Unmatched left rows, and left
// rows whose key is nil, get nil for every right-side column. The output holds
// the left columns followed by the right columns other than key.
func LeftJoin(ctx context.Context, left, right *core.Table, key string) (*core.Table, error) {
	if !left.HasColumn(key) {
		return nil, &core.ColumnError{Table: "left", Column: key, Err: core.ErrMissingColumn}
	}
	if !right.HasColumn(key) {
		return nil, &core.ColumnError{Table: "right", Column: key, Err: core.ErrMissingColumn}
	}

	leftNames, rightNames := outputNames(left.Columns, right.Columns, key)

	out := &core.Table{
		Columns: make([]string, 0, len(left.Columns)+len(right.Columns)-1),
		Rows:    make([]core.Record, 0, len(left.Rows)),
	}
	for _, c := range left.Columns {
		out.Columns = append(out.Columns, leftNames[c])
	}
	for _, c := range right.Columns {
		if c != key {
			out.Columns = append(out.Columns, rightNames[c])
		}
	}

	// Build hash index on the right side
	rightIndex := make(map[string][]core.Record)
	for _, rightRecord := range right.Rows {
		k, ok := joinKey(rightRecord[key])
		if !ok {
			continue
		}
		rightIndex[k] = append(rightIndex[k], rightRecord)
	}

	for _, leftRecord := range left.Rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		k, ok := joinKey(leftRecord[key])
		matches := rightIndex[k]
		if !ok || len(matches) == 0 {
			out.Rows = append(out.Rows, mergeRecords(leftRecord, nil, left.Columns, right.Columns, key, leftNames, rightNames))
			continue
		}
		for _, rightRecord := range matches {
			out.Rows = append(out.Rows, mergeRecords(leftRecord, rightRecord, left.Columns, right.Columns, key, leftNames, rightNames))
		}
	}

	return out, nil
}

// joinKey renders a key cell for hashing. Integer and integral float keys
// compare equal so that a column widened by missing values still matches.
func joinKey(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val)), true
		}
		return fmt.Sprintf("%v", val), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// outputNames resolves output column names for both sides, suffixing collisions.
func outputNames(leftCols, rightCols []string, key string) (map[string]string, map[string]string) {
	inRight := make(map[string]bool, len(rightCols))
	for _, c := range rightCols {
		inRight[c] = true
	}
	inLeft := make(map[string]bool, len(leftCols))
	for _, c := range leftCols {
		inLeft[c] = true
	}

	leftNames := make(map[string]string, len(leftCols))
	for _, c := range leftCols {
		if c != key && inRight[c] {
			leftNames[c] = c + LeftSuffix
		} else {
			leftNames[c] = c
		}
	}
	rightNames := make(map[string]string, len(rightCols))
	for _, c := range rightCols {
		if c != key && inLeft[c] {
			rightNames[c] = c + RightSuffix
		} else {
			rightNames[c] = c
		}
	}
	return leftNames, rightNames
}

// mergeRecords combines a left row with an optional right row.
func mergeRecords(leftRecord, rightRecord core.Record, leftCols, rightCols []string, key string, leftNames, rightNames map[string]string) core.Record {
	result := make(core.Record, len(leftCols)+len(rightCols)-1)
	for _, c := range leftCols {
		result[leftNames[c]] = leftRecord[c]
	}
	for _, c := range rightCols {
		if c == key {
			continue
		}
		if rightRecord == nil {
			result[rightNames[c]] = nil
		} else {
			result[rightNames[c]] = rightRecord[c]
		}
	}
	return result
}
