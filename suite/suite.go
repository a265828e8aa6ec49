// Package suite shares one selenium fixture across the tests of a testify
// suite.
//
//	type LoginSuite struct {
//		suite.Suite
//	}
//
//	func (s *LoginSuite) TestHome() {
//		s.GetPath(s.T(), "/")
//		s.WaitForTitle(s.T(), "Hello World")
//	}
//
//	func TestLogin(t *testing.T) {
//		testifysuite.Run(t, &LoginSuite{Suite: suite.New(app.NewRouter())})
//	}
package suite

import (
	"net/http"

	"github.com/stretchr/testify/suite"

	seleniumhelpers "github.com/wanmail/seleniumhelpers"
)

// Suite starts the live server and browser once in SetupSuite and releases
// them in TearDownSuite. Embedding suites that define their own SetupSuite or
// TearDownSuite must call these.
type Suite struct {
	suite.Suite
	*seleniumhelpers.Fixture

	// Handler is served on the live server.
	Handler http.Handler
	// Options are passed to seleniumhelpers.Start.
	Options []seleniumhelpers.Option
}

// New returns a Suite serving handler.
func New(handler http.Handler, opts ...seleniumhelpers.Option) Suite {
	return Suite{Handler: handler, Options: opts}
}

func (s *Suite) SetupSuite() {
	if s.Handler == nil {
		s.T().Fatal("selenium suite has no Handler")
	}
	s.Fixture = seleniumhelpers.Start(s.T(), s.Handler, s.Options...)
}

func (s *Suite) TearDownSuite() {
	if s.Fixture == nil {
		return
	}
	s.NoError(s.Fixture.Close())
}
