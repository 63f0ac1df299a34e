// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/embermush/embermush/internal/artifact"
	"github.com/embermush/embermush/internal/dialog"
	"github.com/embermush/embermush/internal/freeze"
	"github.com/embermush/embermush/internal/sched"
	"github.com/embermush/embermush/internal/store"
	"github.com/embermush/embermush/internal/telnet"
	"github.com/embermush/embermush/internal/totp"
	"github.com/embermush/embermush/internal/twofa"
	"github.com/embermush/embermush/internal/world"
)

// client is a minimal line-oriented telnet test client.
type client struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialServer(addr string) *client {
	GinkgoHelper()
	conn, err := net.Dial("tcp", addr)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = conn.Close() })
	return &client{conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(line string) {
	GinkgoHelper()
	_, err := fmt.Fprintln(c.conn, line)
	Expect(err).NotTo(HaveOccurred())
}

// readUntil drains lines until one contains want, failing after the
// deadline.
func (c *client) readUntil(want string) string {
	GinkgoHelper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		Expect(c.conn.SetReadDeadline(deadline)).To(Succeed())
		line, err := c.r.ReadString('\n')
		Expect(err).NotTo(HaveOccurred(), "waiting for %q", want)
		if strings.Contains(line, want) {
			return strings.TrimRight(line, "\r\n")
		}
	}
	Fail(fmt.Sprintf("never saw %q", want))
	return ""
}

var _ = Describe("Authentication gate", Ordered, func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		creds      *store.CredentialStore
		guard      *freeze.Guard
		controller *twofa.Controller
		serverAddr string
	)

	BeforeAll(func() {
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)

		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = pgContainer.Terminate(context.Background()) })

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err := store.Connect(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		creds, err = store.NewCredentialStore(pool, bytes.Repeat([]byte{0x07}, store.SealKeySize))
		Expect(err).NotTo(HaveOccurred())

		catalog := dialog.DefaultCatalog()
		w := world.New(world.Position{X: 8, Y: 64, Z: 8})

		guard, err = freeze.NewGuard(w, artifact.IsArtifact, freeze.Notices{
			Chat:    catalog.Errors.NoChat,
			Command: catalog.Errors.FinishLogin,
			Drop:    catalog.Errors.NoDropArtifact,
		})
		Expect(err).NotTo(HaveOccurred())
		go guard.Run(ctx)

		gateway := telnet.NewGateway()

		controller, err = twofa.NewController(twofa.Config{
			Issuer:              "EmberMUSH",
			SkewSteps:           1,
			BypassWindow:        24 * time.Hour,
			RegistrationTimeout: 3 * time.Minute,
			LoginTimeout:        90 * time.Second,
			NudgeDelay:          200 * time.Millisecond,
			OrientDelay:         50 * time.Millisecond,
			Ban: twofa.BanConfig{
				MaxFailedAttempts: 3,
				BanDuration:       5 * time.Minute,
			},
		}, catalog, twofa.Deps{
			Store:     creds,
			Codes:     totp.NewEngine(),
			Freezer:   guard,
			Timers:    sched.New(),
			Presenter: gateway,
			Artifacts: artifact.NewIssuer(),
			World:     w,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = controller.Shutdown(context.Background())
		})

		server := telnet.NewServer("127.0.0.1:0", telnet.Deps{
			World:     w,
			Guard:     guard,
			Gate:      controller,
			Directory: creds,
			Gateway:   gateway,
		})
		go func() {
			defer GinkgoRecover()
			Expect(server.Run(ctx)).To(Succeed())
		}()
		Eventually(server.Addr, 5*time.Second, 20*time.Millisecond).ShouldNot(BeEmpty())
		serverAddr = server.Addr()
	})

	It("walks a new principal through registration", func() {
		c := dialServer(serverAddr)
		c.readUntil("What is your name?")
		c.send("Ember")

		c.readUntil("=== Two-Factor Setup ===")
		c.readUntil("1) Get setup code:")

		By("chat is suppressed while frozen")
		c.send("say anyone here?")
		c.readUntil("You must finish authenticating before chatting.")

		By("requesting the scannable artifact")
		c.send("1")
		c.readUntil("You received a setup code.")

		By("the reminder prompt arrives after the nudge delay")
		c.readUntil("=== Finished scanning? ===")
		c.send("1")
		c.readUntil("=== Two-Factor Login ===")

		id, found, err := creds.Resolve(ctx, "Ember")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())

		secret, err := creds.GetSecret(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(secret).NotTo(BeEmpty())

		code, err := pqtotp.GenerateCode(secret, time.Now())
		Expect(err).NotTo(HaveOccurred())

		By("a wrong code is rejected with the remaining-attempt count")
		wrong := "000000"
		if wrong == code {
			wrong = "111111"
		}
		c.send(wrong + " yes")
		c.readUntil("Wrong code. 2 attempts remaining.")

		By("the correct code completes registration")
		c.send(code + " yes")
		c.readUntil("Authentication complete. Welcome!")

		Eventually(func() bool { return guard.IsFrozen(id) },
			5*time.Second, 20*time.Millisecond).Should(BeFalse())

		By("the world is interactive after authentication")
		c.send("say hello world")
		c.readUntil(`You say, "hello world"`)

		enrolled, err := creds.IsEnrolled(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(enrolled).To(BeTrue())

		c.send("quit")
		c.readUntil("Goodbye!")
	})

	It("bypasses a returning principal within the trusted window", func() {
		c := dialServer(serverAddr)
		c.readUntil("What is your name?")
		c.send("Ember")

		// Same address, recent success: no prompt, straight into the
		// world.
		c.readUntil("Ember joined the world")

		c.send("say back again")
		c.readUntil(`You say, "back again"`)

		c.send("quit")
		c.readUntil("Goodbye!")
	})

	It("keeps independent principals isolated", func() {
		c := dialServer(serverAddr)
		c.readUntil("What is your name?")
		c.send("Cinder")

		// A fresh principal gets the registration prompt even while
		// another principal is already trusted.
		c.readUntil("=== Two-Factor Setup ===")

		By("leaving disconnects without enrolling")
		c.send("2")
		c.readUntil("You chose to leave.")

		id, found, err := creds.Resolve(ctx, "Cinder")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())

		enrolled, err := creds.IsEnrolled(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(enrolled).To(BeFalse())
	})
})
