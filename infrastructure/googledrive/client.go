// Package googledrive adapts Google Drive and Google Sheets into the
// RemoteClient capability from spec §4.2: grant read permission, list
// sheets, batch-write cells. The credential is opaque beyond that contract,
// built once at startup from either a refresh token or a service-account
// file (see credentials.go).
package googledrive

import (
	"context"
	"fmt"
	"strings"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/pkg/config"
	"github.com/foldershare/sharer/pkg/logger"
)

// Client implements port.RemoteClient against the real Drive v3 and
// Sheets v4 APIs. It is stateless beyond the attached credential, exactly
// as spec §4.2 requires: it never retries a failed GrantRead internally.
type Client struct {
	drive  *drivev3.Service
	sheets *sheetsv4.Service
}

// New builds a Client from cfg, establishing one Drive service and one
// Sheets service sharing the same token source.
func New(ctx context.Context, cfg config.DriveConfig) (*Client, error) {
	tokenSource, err := buildTokenSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building credential: %w", err)
	}

	opts := option.WithTokenSource(tokenSource)

	driveSvc, err := drivev3.NewService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	sheetsSvc, err := sheetsv4.NewService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Client{drive: driveSvc, sheets: sheetsSvc}, nil
}

// GrantRead grants read capability on folderID to email without triggering
// a user-visible notification, per spec §4.2.
func (c *Client) GrantRead(ctx context.Context, folderID, email string) (string, error) {
	permission := &drivev3.Permission{
		Type:         "user",
		Role:         "reader",
		EmailAddress: email,
	}

	created, err := c.drive.Permissions.Create(folderID, permission).
		Context(ctx).
		SendNotificationEmail(false).
		SupportsAllDrives(true).
		Fields("id").
		Do()
	if err != nil {
		return "", classifyDriveError(err)
	}

	logger.Remote("grant_read", "granted read permission", map[string]interface{}{
		"folder_id": folderID,
		"email":     email,
	})
	return created.Id, nil
}

// ListSheets lists the sheets (title, id) in documentID, used to resolve
// the sheet title before a flush (spec §4.6 step 6).
func (c *Client) ListSheets(ctx context.Context, documentID string) ([]port.SheetInfo, error) {
	spreadsheet, err := c.sheets.Spreadsheets.Get(documentID).Context(ctx).Fields("sheets.properties").Do()
	if err != nil {
		return nil, classifySheetsError(err)
	}

	infos := make([]port.SheetInfo, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		infos = append(infos, port.SheetInfo{
			Title:   sheet.Properties.Title,
			SheetID: sheet.Properties.SheetId,
		})
	}
	return infos, nil
}

// BatchWriteCells writes all updates to sheetTitle within documentID in a
// single call: either every update lands, or the call fails and the Engine
// retries on a later run, per spec §4.2.
func (c *Client) BatchWriteCells(ctx context.Context, documentID, sheetTitle string, updates []model.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	data := make([]*sheetsv4.ValueRange, 0, len(updates))
	for _, u := range updates {
		// Address the cell within sheetTitle, whatever sheet name the
		// update's range was built with.
		cell := u.Range
		if i := strings.LastIndex(cell, "!"); i >= 0 {
			cell = cell[i+1:]
		}
		data = append(data, &sheetsv4.ValueRange{
			Range:  sheetTitle + "!" + cell,
			Values: [][]interface{}{{u.Value}},
		})
	}

	body := &sheetsv4.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}

	_, err := c.sheets.Spreadsheets.Values.BatchUpdate(documentID, body).Context(ctx).Do()
	if err != nil {
		return classifySheetsError(err)
	}

	logger.Remote("batch_write_cells", "flushed cell updates", map[string]interface{}{
		"sheet":      sheetTitle,
		"cell_count": len(updates),
	})
	return nil
}
