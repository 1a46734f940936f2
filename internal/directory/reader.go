package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/logger"
)

var (
	// ErrConnect covers dial and bind failures. Always fatal.
	ErrConnect = errors.New("directory connect failed")
	// ErrSearch is returned for search failures under the abort policy.
	ErrSearch = errors.New("directory search failed")
)

const userFilter = "(objectClass=user)"

// Attributes projected from each user entry.
const (
	attrName       = "cn"
	attrMail       = "mail"
	attrEmployeeID = "employeeID"
	attrDepartment = "department"
)

// Session is the subset of *ldap.Conn the reader depends on.
type Session interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Unbind() error
}

// DialFunc opens an unauthenticated session to addr.
type DialFunc func(addr string, timeout time.Duration) (Session, error)

// DialLDAP dials with go-ldap, applying timeout to the TCP dial and to every request.
func DialLDAP(addr string, timeout time.Duration) (Session, error) {
	conn, err := ldap.DialURL(addr, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(timeout)
	return conn, nil
}

// Reader fetches user entries from the directory.
type Reader struct {
	cfg  config.LDAPConfig
	dial DialFunc
}

// NewReader creates a reader. A nil dial uses DialLDAP.
func NewReader(cfg config.LDAPConfig, dial DialFunc) *Reader {
	if dial == nil {
		dial = DialLDAP
	}
	return &Reader{cfg: cfg, dial: dial}
}

// FetchUsers binds, runs the subtree search and releases the session before returning.
// The session is always unbound, whatever the outcome of the search. Each request is
// bounded by the configured timeout rather than by ctx, which is only checked up front.
func (r *Reader) FetchUsers(ctx context.Context) ([]models.DirectoryUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	sess, err := r.dial(r.cfg.ServerAddress, r.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnect, r.cfg.ServerAddress, err)
	}
	defer func() {
		if err := sess.Unbind(); err != nil {
			logger.Debugf("ldap unbind: %v", err)
		}
	}()

	if err := sess.Bind(r.cfg.BindDN, r.cfg.BindPassword); err != nil {
		return nil, fmt.Errorf("%w: bind as %q: %v", ErrConnect, r.cfg.BindDN, err)
	}
	logger.Debugf("ldap bind succeeded (server=%s)", r.cfg.ServerAddress)

	req := ldap.NewSearchRequest(
		r.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		userFilter,
		[]string{attrName, attrMail, attrEmployeeID, attrDepartment},
		nil,
	)

	var res *ldap.SearchResult
	if r.cfg.PageSize > 0 {
		res, err = sess.SearchWithPaging(req, r.cfg.PageSize)
	} else {
		res, err = sess.Search(req)
	}
	if err != nil {
		if r.cfg.SearchFailure == config.SearchFailureEmpty {
			logger.Errorf("LDAP Search Error: %v", err)
			return []models.DirectoryUser{}, nil
		}
		return nil, fmt.Errorf("%w: base %q: %v", ErrSearch, r.cfg.BaseDN, err)
	}

	users := make([]models.DirectoryUser, 0, len(res.Entries))
	for _, e := range res.Entries {
		users = append(users, toUser(e))
	}
	logger.Infof("fetched %d users from %s", len(users), r.cfg.BaseDN)
	return users, nil
}

// toUser takes the first value of each projected attribute; absent attributes yield "".
func toUser(e *ldap.Entry) models.DirectoryUser {
	return models.DirectoryUser{
		Name:       e.GetAttributeValue(attrName),
		Email:      e.GetAttributeValue(attrMail),
		EmployeeID: e.GetAttributeValue(attrEmployeeID),
		Department: e.GetAttributeValue(attrDepartment),
	}
}
