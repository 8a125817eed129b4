package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/models"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"github.com/shopspring/decimal"
)

// setupIntegration spins up a fresh MySQL, connects, migrates, and returns a
// context carrying the actor identity every audited mutation needs. The
// returned user is the actor; views that join users resolve its display name.
func setupIntegration(t *testing.T) (context.Context, *models.User) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "kasmoni_test")

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	models.MigrateTable()

	ctx := context.Background()
	actor, err := models.CreateUser(ctx, &models.NewUser{
		Username:    "test@local",
		Password:    "testpw-12345",
		DisplayName: "Test Admin",
		IsAdmin:     true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, actor.ID)
	ctx = utils.SetUserNameInContext(ctx, actor.DisplayName)
	ctx = utils.SetUsernameInContext(ctx, actor.Username)
	ctx = utils.SetClientIpInContext(ctx, "127.0.0.1")
	ctx = utils.SetUserAgentInContext(ctx, "go-test")
	return ctx, actor
}

// seedGroup creates a group with one slot per receive month, all held by
// freshly created members. Returns the group and its slots in month order.
func seedGroup(t *testing.T, ctx context.Context, months ...models.MonthString) (*models.Group, []*models.Slot) {
	t.Helper()

	group, err := models.CreateGroup(ctx, &models.NewGroup{
		Name:          "Januari Ronde",
		MonthlyAmount: decimal.NewFromInt(500),
		StartMonth:    months[0],
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	slots := make([]*models.Slot, 0, len(months))
	for i, month := range months {
		member, err := models.CreateMember(ctx, &models.NewMember{
			FirstName: fmt.Sprintf("Member%d", i+1),
			LastName:  "Test",
		})
		if err != nil {
			t.Fatalf("CreateMember: %v", err)
		}
		slot, err := models.CreateSlot(ctx, &models.NewSlot{
			GroupId:      group.ID,
			MemberId:     member.ID,
			ReceiveMonth: month,
		})
		if err != nil {
			t.Fatalf("CreateSlot: %v", err)
		}
		slots = append(slots, slot)
	}
	return group, slots
}

func newTestPayment(group *models.Group, slot *models.Slot, month models.MonthString, status models.PaymentStatus) *models.NewPayment {
	date := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	return &models.NewPayment{
		GroupId:      group.ID,
		MemberId:     slot.MemberId,
		Slot:         slot.ReceiveMonth,
		PaymentMonth: month,
		Amount:       decimal.NewFromInt(500),
		PaymentDate:  &date,
		PaymentType:  models.PaymentTypeCash,
		Status:       status,
	}
}

func TestPaymentLifecycleTrashRestorePurge(t *testing.T) {
	ctx, actor := setupIntegration(t)
	month := models.MonthString("2026-03")
	group, slots := seedGroup(t, ctx, "2026-03", "2026-04")

	payment, err := models.CreatePayment(ctx, newTestPayment(group, slots[0], month, models.PaymentStatusPending))
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	// A second active payment on the same tuple is rejected.
	_, err = models.CreatePayment(ctx, newTestPayment(group, slots[0], month, models.PaymentStatusPending))
	if !errors.Is(err, models.ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment on second create, got %v", err)
	}

	status, err := models.GetGroupStatus(ctx, group.ID, month)
	if err != nil {
		t.Fatalf("GetGroupStatus: %v", err)
	}
	if status.Status != models.GroupStatusPending || status.PendingCount != 2 || status.MemberCount != 2 {
		t.Fatalf("before trash: got %+v, want pending with 2 pending of 2 slots", status)
	}

	// Trash: the row vanishes from the aggregator and the listings but shows
	// up in the trashbox with who trashed it.
	trashed, err := models.TrashPayment(ctx, payment.ID, "")
	if err != nil {
		t.Fatalf("TrashPayment: %v", err)
	}
	if trashed.State() != models.LifecycleTrashed || trashed.DeletedByUserId == nil || *trashed.DeletedByUserId != actor.ID {
		t.Fatalf("trashed payment markers wrong: %+v", trashed)
	}

	status, err = models.GetGroupStatus(ctx, group.ID, month)
	if err != nil {
		t.Fatalf("GetGroupStatus after trash: %v", err)
	}
	if status.Status != models.GroupStatusNotPaid || status.PendingCount != 2 {
		t.Fatalf("after trash: got %+v, want not_paid with 2 pending", status)
	}

	active, err := models.ListPayments(ctx, models.PaymentFilter{GroupId: &group.ID})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("trashed payment still listed as active: %+v", active)
	}

	trashbox, err := models.ListTrashbox(ctx)
	if err != nil {
		t.Fatalf("ListTrashbox: %v", err)
	}
	if len(trashbox) != 1 || trashbox[0].ID != payment.ID {
		t.Fatalf("trashbox = %+v, want exactly the trashed payment", trashbox)
	}
	if trashbox[0].DeletedBy != actor.DisplayName {
		t.Fatalf("trashbox deleted_by = %q, want %q", trashbox[0].DeletedBy, actor.DisplayName)
	}

	// The tuple is free again; a replacement create succeeds.
	replacement, err := models.CreatePayment(ctx, newTestPayment(group, slots[0], month, models.PaymentStatusReceived))
	if err != nil {
		t.Fatalf("CreatePayment(replacement): %v", err)
	}

	// Restoring the original now would revive a duplicate.
	_, err = models.RestorePayment(ctx, payment.ID)
	if !errors.Is(err, models.ErrConflictingActiveRecord) {
		t.Fatalf("expected ErrConflictingActiveRecord, got %v", err)
	}

	// With the replacement trashed the restore goes through, same row, same id.
	if _, err := models.TrashPayment(ctx, replacement.ID, ""); err != nil {
		t.Fatalf("TrashPayment(replacement): %v", err)
	}
	restored, err := models.RestorePayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("RestorePayment: %v", err)
	}
	if restored.ID != payment.ID || restored.State() != models.LifecycleActive {
		t.Fatalf("restored payment = %+v, want original id back in active state", restored)
	}
	if restored.DeletedAt != nil || restored.DeletedByUserId != nil {
		t.Fatalf("restore left trash markers behind: %+v", restored)
	}

	// Purge only applies to trashed rows.
	if err := models.PurgePayment(ctx, payment.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition purging an active payment, got %v", err)
	}
	if _, err := models.TrashPayment(ctx, payment.ID, ""); err != nil {
		t.Fatalf("TrashPayment before purge: %v", err)
	}
	if err := models.PurgePayment(ctx, payment.ID); err != nil {
		t.Fatalf("PurgePayment: %v", err)
	}
	if _, err := models.GetPaymentById(ctx, payment.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected purged payment to be gone, got %v", err)
	}

	// The audit trail outlives the row.
	trail, err := models.ListPaymentAudit(ctx, payment.ID)
	if err != nil {
		t.Fatalf("ListPaymentAudit: %v", err)
	}
	wantActions := []models.AuditAction{
		models.AuditActionCreated,
		models.AuditActionDeleted,
		models.AuditActionRestored,
		models.AuditActionDeleted,
		models.AuditActionPurged,
	}
	if len(trail) != len(wantActions) {
		t.Fatalf("audit trail has %d entries, want %d: %+v", len(trail), len(wantActions), trail)
	}
	for i, entry := range trail {
		if entry.Action != wantActions[i] {
			t.Fatalf("audit entry %d action = %s, want %s", i, entry.Action, wantActions[i])
		}
		if entry.UserId != actor.ID || entry.UserName != actor.DisplayName {
			t.Fatalf("audit entry %d actor = %d/%q, want %d/%q",
				i, entry.UserId, entry.UserName, actor.ID, actor.DisplayName)
		}
		if entry.ClientIp != "127.0.0.1" || entry.UserAgent != "go-test" {
			t.Fatalf("audit entry %d client metadata = %q/%q", i, entry.ClientIp, entry.UserAgent)
		}
	}
	// The purge entry keeps the final field values in Before.
	purgeEntry := trail[len(trail)-1]
	if !strings.Contains(purgeEntry.Before, `"status"`) {
		t.Fatalf("purge audit entry missing before snapshot: %q", purgeEntry.Before)
	}
}

func TestArchiveFlowAndStatusAggregation(t *testing.T) {
	ctx, actor := setupIntegration(t)
	month := models.MonthString("2026-05")
	group, slots := seedGroup(t, ctx, "2026-05", "2026-06")

	p1, err := models.CreatePayment(ctx, newTestPayment(group, slots[0], month, models.PaymentStatusReceived))
	if err != nil {
		t.Fatalf("CreatePayment 1: %v", err)
	}
	p2, err := models.CreatePayment(ctx, newTestPayment(group, slots[1], month, models.PaymentStatusPending))
	if err != nil {
		t.Fatalf("CreatePayment 2: %v", err)
	}

	// A status-only edit is logged as status_changed with just the status in
	// the before/after snapshots.
	received := models.PaymentStatusReceived
	if _, err := models.UpdatePayment(ctx, p2.ID, &models.UpdatePaymentInput{Status: &received}); err != nil {
		t.Fatalf("UpdatePayment(status): %v", err)
	}
	trail, err := models.ListPaymentAudit(ctx, p2.ID)
	if err != nil {
		t.Fatalf("ListPaymentAudit: %v", err)
	}
	if len(trail) != 2 || trail[1].Action != models.AuditActionStatusChanged {
		t.Fatalf("expected created + status_changed, got %+v", trail)
	}
	if trail[1].Before != `{"status":"pending"}` || trail[1].After != `{"status":"received"}` {
		t.Fatalf("status change snapshots = %q -> %q, want status only",
			trail[1].Before, trail[1].After)
	}

	status, err := models.GetGroupStatus(ctx, group.ID, month)
	if err != nil {
		t.Fatalf("GetGroupStatus: %v", err)
	}
	if status.Status != models.GroupStatusFullyPaid || status.PendingCount != 0 {
		t.Fatalf("both received: got %+v, want fully_paid", status)
	}

	dash, err := models.GetDashboardSummary(ctx, month)
	if err != nil {
		t.Fatalf("GetDashboardSummary: %v", err)
	}
	if dash.GroupCount != 1 || dash.FullyPaidGroups != 1 || dash.OpenSlots != 0 {
		t.Fatalf("dashboard = %+v, want one fully paid group", dash)
	}

	// Archiving takes the row out of aggregation, with the reason on record.
	archived, err := models.ArchivePayment(ctx, p1.ID, "disputed transfer")
	if err != nil {
		t.Fatalf("ArchivePayment: %v", err)
	}
	if archived.State() != models.LifecycleArchived || archived.ArchiveReason != "disputed transfer" {
		t.Fatalf("archived payment = %+v", archived)
	}

	status, err = models.GetGroupStatus(ctx, group.ID, month)
	if err != nil {
		t.Fatalf("GetGroupStatus after archive: %v", err)
	}
	if status.Status != models.GroupStatusPending || status.PendingCount != 1 {
		t.Fatalf("after archive: got %+v, want pending with 1 open slot", status)
	}

	archive, err := models.ListArchive(ctx)
	if err != nil {
		t.Fatalf("ListArchive: %v", err)
	}
	if len(archive) != 1 || archive[0].ID != p1.ID || archive[0].ArchivedBy != actor.DisplayName {
		t.Fatalf("archive listing = %+v", archive)
	}

	// Archived rows are read-only until restored or trashed.
	amount := decimal.NewFromInt(600)
	if _, err := models.UpdatePayment(ctx, p1.ID, &models.UpdatePaymentInput{Amount: &amount}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition updating archived payment, got %v", err)
	}
	if err := models.PurgePayment(ctx, p1.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition purging archived payment, got %v", err)
	}

	// Archive to trash clears the archive markers.
	moved, err := models.TrashArchivedPayment(ctx, p1.ID, "")
	if err != nil {
		t.Fatalf("TrashArchivedPayment: %v", err)
	}
	if moved.State() != models.LifecycleTrashed || moved.ArchivedAt != nil || moved.ArchiveReason != "" {
		t.Fatalf("archive-to-trash left markers: %+v", moved)
	}
	archive, err = models.ListArchive(ctx)
	if err != nil {
		t.Fatalf("ListArchive after move: %v", err)
	}
	if len(archive) != 0 {
		t.Fatalf("archive should be empty after move, got %+v", archive)
	}
}

func TestBulkOperationsPartialFailure(t *testing.T) {
	ctx, _ := setupIntegration(t)
	month := models.MonthString("2026-07")
	group, slots := seedGroup(t, ctx, "2026-07", "2026-08")

	p1, err := models.CreatePayment(ctx, newTestPayment(group, slots[0], month, models.PaymentStatusPending))
	if err != nil {
		t.Fatalf("CreatePayment 1: %v", err)
	}
	p2, err := models.CreatePayment(ctx, newTestPayment(group, slots[1], month, models.PaymentStatusPending))
	if err != nil {
		t.Fatalf("CreatePayment 2: %v", err)
	}

	// One unknown id in the batch; the rest still go through.
	results, err := models.BulkTrashPayments(ctx, []int{p1.ID, p2.ID, 999999}, "")
	if err != nil {
		t.Fatalf("BulkTrashPayments: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("bulk results = %+v, want 3", results)
	}
	var failed int
	for _, r := range results {
		if !r.Ok() {
			failed++
			if r.PaymentId != 999999 {
				t.Fatalf("unexpected failure for payment %d: %s", r.PaymentId, r.Error)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("want exactly one failed item, got %d", failed)
	}

	p1After, err := models.GetPaymentById(ctx, p1.ID)
	if err != nil {
		t.Fatalf("GetPaymentById: %v", err)
	}
	if p1After.State() != models.LifecycleTrashed {
		t.Fatalf("payment %d not trashed by bulk op: %s", p1.ID, p1After.State())
	}

	// Per-item entries plus one summary entry with the outcome counts.
	db := config.GetDB()
	var summaries []*models.PaymentAudit
	err = db.WithContext(ctx).
		Where("action = ? AND payment_id IS NULL", models.AuditActionBulkDeleted).
		Find(&summaries).Error
	if err != nil {
		t.Fatalf("fetch bulk summary entries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("want one bulk summary entry, got %+v", summaries)
	}
	if summaries[0].Details != "2 of 3 payments processed" {
		t.Fatalf("bulk summary details = %q", summaries[0].Details)
	}

	itemTrail, err := models.ListPaymentAudit(ctx, p2.ID)
	if err != nil {
		t.Fatalf("ListPaymentAudit: %v", err)
	}
	if len(itemTrail) != 2 || itemTrail[1].Action != models.AuditActionDeleted {
		t.Fatalf("per-item trail for %d = %+v, want created + deleted", p2.ID, itemTrail)
	}

	// Bulk restore brings both rows back; the duplicate guard has nothing to
	// object to since both tuples are free.
	restoreResults, err := models.BulkRestorePayments(ctx, []int{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("BulkRestorePayments: %v", err)
	}
	for _, r := range restoreResults {
		if !r.Ok() {
			t.Fatalf("bulk restore failed for %d: %s", r.PaymentId, r.Error)
		}
	}

	// The paged trail view sees everything, newest first.
	conn, err := models.ListAuditTrail(ctx, 5, nil)
	if err != nil {
		t.Fatalf("ListAuditTrail: %v", err)
	}
	if len(conn.Edges) != 5 || conn.PageInfo.HasNextPage == nil || !*conn.PageInfo.HasNextPage {
		t.Fatalf("trail page = %d edges hasNext=%v, want 5 with a next page", len(conn.Edges), conn.PageInfo.HasNextPage)
	}
	next, err := models.ListAuditTrail(ctx, 5, &conn.PageInfo.EndCursor)
	if err != nil {
		t.Fatalf("ListAuditTrail(page 2): %v", err)
	}
	if len(next.Edges) == 0 {
		t.Fatalf("expected a second trail page")
	}
	for _, edge := range conn.Edges {
		for _, other := range next.Edges {
			if edge.Node.ID == other.Node.ID {
				t.Fatalf("audit entry %d repeated across pages", edge.Node.ID)
			}
		}
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("kasmoni-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=kasmoni_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
