// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/pmc-harvest/internal/httputil"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// oaServiceBase is the PMC OA web service endpoint. Declared as a var so
// tests can substitute an httptest server.
var oaServiceBase = "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi"

// OA service error codes meaning the article has no package.
const (
	codeNotOpenAccess = "idIsNotOpenAccess"
	codeDoesNotExist  = "idDoesNotExist"
)

// oaResponse captures the fields we need from an OA service reply.
type oaResponse struct {
	XMLName xml.Name   `xml:"OA"`
	Error   *oaError   `xml:"error"`
	Records []oaRecord `xml:"records>record"`
}

type oaError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type oaRecord struct {
	ID    string   `xml:"id,attr"`
	Links []oaLink `xml:"link"`
}

type oaLink struct {
	Format string `xml:"format,attr"`
	Href   string `xml:"href,attr"`
}

// OAServiceResolver asks the PMC OA web service for the package link.
type OAServiceResolver struct {
	Client      *http.Client
	BaseURL     string // overrides the service endpoint when set
	UserAgent   string
	PreferHTTPS bool
}

// Name returns the resolver identifier.
func (r *OAServiceResolver) Name() string { return "oa-service" }

// Resolve queries the OA service for id and returns its tgz link. Only a
// well-formed <OA> reply can report that id has no package; any other reply
// is an error.
func (r *OAServiceResolver) Resolve(ctx context.Context, id types.PMCID) (Location, error) {
	base := oaServiceBase
	if r.BaseURL != "" {
		base = r.BaseURL
	}
	apiURL := base + "?" + url.Values{"id": {id.Accession()}}.Encode()

	resp, err := httputil.Get(ctx, r.Client, apiURL, r.UserAgent, "application/xml")
	if err != nil {
		return Location{}, fmt.Errorf("OA service request: %w", err)
	}
	defer resp.Body.Close()

	var oa oaResponse
	if err := xml.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return Location{}, fmt.Errorf("parsing OA service response: %w", err)
	}

	if oa.Error != nil {
		switch oa.Error.Code {
		case codeNotOpenAccess, codeDoesNotExist:
			return Location{}, fmt.Errorf("%s: %s: %w", id.Accession(), oa.Error.Code, ErrNotOpenAccess)
		default:
			return Location{}, fmt.Errorf("OA service error %s: %s", oa.Error.Code, oa.Error.Message)
		}
	}

	for _, rec := range oa.Records {
		for _, l := range rec.Links {
			if l.Format != "tgz" || l.Href == "" {
				continue
			}
			href := l.Href
			if r.PreferHTTPS {
				href = httpsMirror(href)
			}
			return Location{URL: href, Resolver: r.Name()}, nil
		}
	}
	return Location{}, fmt.Errorf("%s: no tgz link: %w", id.Accession(), ErrNotOpenAccess)
}

// httpsMirror rewrites an ftp:// link to https:// on the same host and path.
// The NCBI file server serves identical trees over both.
func httpsMirror(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "ftp" {
		return raw
	}
	u.Scheme = "https"
	u.User = nil
	return u.String()
}
