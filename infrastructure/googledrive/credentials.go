package googledrive

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/foldershare/sharer/pkg/config"
)

// buildTokenSource resolves the opaque credential capability from spec §1:
// either a refresh token (exactly how the teacher's DriveClient builds its
// oauth2.Config) or a service-account key file, mirroring the two common
// ways a headless worker authenticates against Drive/Sheets.
func buildTokenSource(ctx context.Context, cfg config.DriveConfig) (oauth2.TokenSource, error) {
	scopes := []string{drivev3.DriveScope, sheetsv4.SpreadsheetsScope}

	if cfg.ServiceAccountFile != "" {
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("reading service account file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parsing service account credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	return oauthConfig.TokenSource(ctx, token), nil
}
