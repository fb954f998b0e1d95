package main

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/auth"
	"github.com/jonwraymond/sheetbridge/cache"
	"github.com/jonwraymond/sheetbridge/handler"
	"github.com/jonwraymond/sheetbridge/mcperr"
	"github.com/jonwraymond/sheetbridge/safety"
	"github.com/jonwraymond/sheetbridge/task"
	"github.com/jonwraymond/sheetbridge/txn"
)

// requireWriteScope denies a write action unless the caller's identity
// (attached to rc.Context by the streamable transport) holds
// sheets:write for spreadsheetID, globally or sheets:admin. Disabled
// when enforce is false, so deployments running without an authenticator
// configured keep accepting anonymous writes.
func requireWriteScope(ctx context.Context, spreadsheetID string, enforce bool) *mcperr.Error {
	if !enforce || auth.CanWriteSpreadsheet(ctx, spreadsheetID) {
		return nil
	}
	return mcperr.New(mcperr.KindPermissionDenied, "missing sheets:write scope for spreadsheet "+spreadsheetID)
}

// registerActions wires the gateway's user-facing actions onto rt. Each
// handler resolves its range through resolver before touching the gate
// or the transaction manager, so header:/named:/meta: references work
// identically to plain A1 everywhere a range parameter is accepted.
func registerActions(rt *handler.Runtime, resolver *handler.RangeResolver, spreadsheets apiclient.SpreadsheetsAPI, metadata apiclient.MetadataAPI, namedRangesCache, developerMetadataCache *cache.CacheMiddleware, gate *safety.Gate, txnManager *txn.Manager, taskStore task.Store, requireScope bool) {
	rt.Register(handler.Action{
		Tag: "sheets.read",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			spreadsheetID, rangeParam, perr := requiredRangeParams(params)
			if perr != nil {
				return nil, nil, perr
			}
			ref, rerr := resolver.Resolve(rc.Context, spreadsheetID, rangeParam)
			if rerr != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindRangeNotFound, "could not resolve range", rerr)
			}

			vr, err := spreadsheets.GetValues(rc.Context, apiclient.GetValuesRequest{
				SpreadsheetID: spreadsheetID,
				Range:         ref.Format(),
			})
			if err != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindInternal, "reading values failed", err)
			}
			return map[string]any{
				"spreadsheet_id": spreadsheetID,
				"range":          vr.Range,
				"values":         vr.Values,
			}, nil, nil
		},
	})

	rt.Register(handler.Action{
		Tag: "sheets.write",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			spreadsheetID, rangeParam, perr := requiredRangeParams(params)
			if perr != nil {
				return nil, nil, perr
			}
			if serr := requireWriteScope(rc.Context, spreadsheetID, requireScope); serr != nil {
				return nil, nil, serr
			}
			values, ok := params["values"].([][]any)
			if !ok {
				return nil, nil, mcperr.New(mcperr.KindInvalidParams, "values must be a 2D array")
			}
			ref, rerr := resolver.Resolve(rc.Context, spreadsheetID, rangeParam)
			if rerr != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindRangeNotFound, "could not resolve range", rerr)
			}
			allowRisky, _ := params["allow_risky"].(bool)
			dryRun, _ := params["dry_run"].(bool)
			a1 := ref.Format()

			_, summary, gerr := gate.Run(rc.Context, safety.Request{
				SpreadsheetID:  spreadsheetID,
				Range:          a1,
				EstimatedCells: cellCount(values),
				Options:        safety.Options{CreateSnapshot: true, AllowRisky: allowRisky, DryRun: dryRun},
				Execute: func(ctx context.Context) (*apiclient.UpdateResult, error) {
					return spreadsheets.UpdateValues(ctx, apiclient.UpdateValuesRequest{
						SpreadsheetID:    spreadsheetID,
						Range:            a1,
						ValueInputOption: "RAW",
						Values:           values,
					})
				},
			})
			if gerr != nil {
				return nil, nil, gerr
			}
			if summary == nil {
				return map[string]any{"spreadsheet_id": spreadsheetID, "range": a1, "dry_run": true}, nil, nil
			}
			return map[string]any{
				"spreadsheet_id": spreadsheetID,
				"range":          summary.Range,
				"updated_cells":  summary.Diff.ChangedCells,
				"snapshot_id":    summary.SnapshotID,
			}, nil, nil
		},
	})

	rt.Register(handler.Action{
		Tag: "sheets.named_ranges.list",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			spreadsheetID, _ := params["spreadsheet_id"].(string)
			if spreadsheetID == "" {
				return nil, nil, mcperr.New(mcperr.KindInvalidParams, "spreadsheet_id is required")
			}
			toolID := cache.MetadataToolID("named_ranges.list", spreadsheetID)
			raw, err := namedRangesCache.Execute(rc.Context, toolID, nil, nil,
				func(ctx context.Context, _ string, _ any) ([]byte, error) {
					ranges, err := metadata.ListNamedRanges(ctx, spreadsheetID)
					if err != nil {
						return nil, err
					}
					return json.Marshal(ranges)
				})
			if err != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindInternal, "listing named ranges failed", err)
			}
			var ranges []apiclient.NamedRange
			if err := json.Unmarshal(raw, &ranges); err != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindInternal, "decoding named ranges failed", err)
			}
			return map[string]any{"spreadsheet_id": spreadsheetID, "named_ranges": ranges}, nil, nil
		},
	})

	rt.Register(handler.Action{
		Tag: "sheets.developer_metadata.search",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			spreadsheetID, _ := params["spreadsheet_id"].(string)
			key, _ := params["key"].(string)
			if spreadsheetID == "" || key == "" {
				return nil, nil, mcperr.New(mcperr.KindInvalidParams, "spreadsheet_id and key are required")
			}
			toolID := cache.MetadataToolID("developer_metadata.search", spreadsheetID)
			raw, err := developerMetadataCache.Execute(rc.Context, toolID, key, nil,
				func(ctx context.Context, _ string, _ any) ([]byte, error) {
					entries, err := metadata.SearchDeveloperMetadata(ctx, spreadsheetID, key)
					if err != nil {
						return nil, err
					}
					return json.Marshal(entries)
				})
			if err != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindInternal, "searching developer metadata failed", err)
			}
			var entries []apiclient.DeveloperMetadataEntry
			if err := json.Unmarshal(raw, &entries); err != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindInternal, "decoding developer metadata failed", err)
			}
			return map[string]any{"spreadsheet_id": spreadsheetID, "entries": entries}, nil, nil
		},
	})

	rt.Register(handler.Action{
		Tag: "transactions.begin",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			spreadsheetID, _ := params["spreadsheet_id"].(string)
			if spreadsheetID == "" {
				return nil, nil, mcperr.New(mcperr.KindInvalidParams, "spreadsheet_id is required")
			}
			autoRollback, _ := params["auto_rollback"].(bool)
			tx := txnManager.Begin(spreadsheetID, autoRollback)
			return map[string]any{"id": tx.ID, "state": string(tx.State)}, nil, nil
		},
	})

	rt.Register(handler.Action{
		Tag: "transactions.commit",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			txID, _ := params["transaction_id"].(string)
			if txID == "" {
				return nil, nil, mcperr.New(mcperr.KindInvalidParams, "transaction_id is required")
			}
			if tx, ok := txnManager.Status(txID); ok {
				if serr := requireWriteScope(rc.Context, tx.SpreadsheetID, requireScope); serr != nil {
					return nil, nil, serr
				}
			}
			result, cerr := txnManager.Commit(rc.Context, txID)
			if cerr != nil {
				return nil, nil, cerr
			}
			return map[string]any{
				"id":            result.TransactionID,
				"snapshot_id":   result.SnapshotID,
				"updated_cells": result.UpdatedCells,
			}, nil, nil
		},
	})

	rt.Register(handler.Action{
		Tag: "tasks.get",
		Handle: func(rc *handler.RequestContext, params map[string]any) (any, *mcperr.Meta, *mcperr.Error) {
			taskID, _ := params["task_id"].(string)
			if taskID == "" {
				return nil, nil, mcperr.New(mcperr.KindInvalidParams, "task_id is required")
			}
			tk, ok, err := taskStore.Get(rc.Context, taskID)
			if err != nil {
				return nil, nil, mcperr.Wrap(mcperr.KindInternal, "task lookup failed", err)
			}
			if !ok {
				return nil, nil, mcperr.New(mcperr.KindNotFound, "task not found")
			}
			return map[string]any{
				"id":       tk.ID,
				"state":    string(tk.State),
				"progress": tk.Progress,
				"result":   tk.Result,
				"error":    tk.Err,
			}, nil, nil
		},
	})
}

func requiredRangeParams(params map[string]any) (spreadsheetID, rangeParam string, mErr *mcperr.Error) {
	spreadsheetID, _ = params["spreadsheet_id"].(string)
	rangeParam, _ = params["range"].(string)
	if spreadsheetID == "" || rangeParam == "" {
		return "", "", mcperr.New(mcperr.KindInvalidParams, "spreadsheet_id and range are required")
	}
	return spreadsheetID, rangeParam, nil
}

func cellCount(values [][]any) int {
	n := 0
	for _, row := range values {
		n += len(row)
	}
	return n
}
