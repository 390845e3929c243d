/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/models"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

type sheetsClient struct {
	sheets *sheets.Service
	drive  *drive.Service
}

func newSheetsClient(sheetsSvc *sheets.Service, driveSvc *drive.Service) *sheetsClient {
	return &sheetsClient{sheets: sheetsSvc, drive: driveSvc}
}

// FindSpreadsheet returns the id of a non-trashed spreadsheet named name,
// or "" when there is none.
func (c *sheetsClient) FindSpreadsheet(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeDriveQuery(name), spreadsheetMimeType)

	resp, err := c.drive.Files.List().Q(q).Fields("files(id,name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive list: %w", err)
	}

	if len(resp.Files) == 0 {
		return "", nil
	}

	return resp.Files[0].Id, nil
}

// CreateSpreadsheet creates name and writes header as its first row.
func (c *sheetsClient) CreateSpreadsheet(ctx context.Context, name string, header []string) (string, error) {
	created, err := c.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: name},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("sheets create: %w", err)
	}

	if len(header) > 0 {
		if err := c.append(ctx, created.SpreadsheetId, "A1", header); err != nil {
			return created.SpreadsheetId, err
		}
	}

	return created.SpreadsheetId, nil
}

// AppendRow appends row below the data on tab. A deleted spreadsheet
// surfaces as credentials.ErrSpreadsheetNotFound.
func (c *sheetsClient) AppendRow(ctx context.Context, spreadsheetID, tab string, row []string) error {
	err := c.append(ctx, spreadsheetID, quoteTab(tab)+"!A1", row)
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w: %w", models.ErrActionExecution, credentials.ErrSpreadsheetNotFound, err)
	}

	return fmt.Errorf("%w: %w", models.ErrActionExecution, err)
}

func (c *sheetsClient) append(ctx context.Context, spreadsheetID, rng string, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}

	_, err := c.sheets.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}

	return nil
}

func escapeDriveQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// quoteTab renders a tab name for A1 notation.
func quoteTab(tab string) string {
	if tab == "" {
		return "Sheet1"
	}

	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
