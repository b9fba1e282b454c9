package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/subscribers"
	"github.com/Spok95/bpark/internal/reports"
)

func subscriberFromParts(parts []string) subscribers.Subscriber {
	return subscribers.Subscriber{
		Code:       strings.TrimSpace(parts[0]),
		Name:       parts[1],
		Phone:      parts[2],
		Email:      parts[3],
		NationalID: parts[4],
	}
}

func (d *Dispatcher) handleRegisterSubscriber(ctx context.Context, payload string) Response {
	parts := strings.Split(payload, ";")
	if len(parts) != 5 {
		return text("REGISTER_FAILED;Malformed request.")
	}
	sub := subscriberFromParts(parts)
	if err := d.subs.Insert(ctx, sub); err != nil {
		d.log.Error("subscriber insert failed", "err", err, "code", sub.Code)
		return text("REGISTER_FAILED;Database error.")
	}
	d.notifier.Welcome(sub.Email, sub.Code)
	return text("REGISTER_SUCCESS")
}

func (d *Dispatcher) handleUpdateSubscriber(ctx context.Context, payload string) Response {
	parts := strings.Split(payload, ";")
	if len(parts) != 4 {
		return text("UPDATE_FAILED;Malformed request.")
	}
	code, name, phone, email := parts[0], parts[1], parts[2], parts[3]
	if err := d.subs.UpdateInfo(ctx, code, name, phone, email); err != nil {
		d.log.Error("subscriber update failed", "err", err, "code", code)
		return text("UPDATE_FAILED;Database update failed.")
	}
	_ = d.activity.Log(ctx, code, activity.TypeUpdateInfo, "Updated personal details.")
	updated, err := d.subs.GetByCode(ctx, code)
	if err != nil || updated == nil {
		return text("UPDATE_FAILED;Could not retrieve updated record.")
	}
	return withRows("UPDATE_SUCCESS", updated)
}

func (d *Dispatcher) handleGetHistory(ctx context.Context, payload string) Response {
	code := strings.TrimSpace(payload)
	history, err := d.activity.HistoryFor(ctx, code)
	if err != nil {
		d.log.Error("history query failed", "err", err, "code", code)
		return text("GET_HISTORY_FAILED;Database error.")
	}
	return withRows("GET_HISTORY_SUCCESS", history)
}

func (d *Dispatcher) handleGetAllOrders(ctx context.Context) Response {
	list, err := d.sessions.List(ctx)
	if err != nil {
		d.log.Error("active sessions query failed", "err", err)
		return text("GET_ALL_ORDERS_FAILED;Database error.")
	}
	return withRows("GET_ALL_ORDERS_SUCCESS", list)
}

func (d *Dispatcher) handleGetAllScheduledOrders(ctx context.Context) Response {
	list, err := d.orders.ListAll(ctx)
	if err != nil {
		d.log.Error("scheduled orders query failed", "err", err)
		return text("GET_ALL_SCHEDULED_ORDERS_FAILED;Database error.")
	}
	return withRows("GET_ALL_SCHEDULED_ORDERS_SUCCESS", list)
}

func (d *Dispatcher) handleGetAllSubscribers(ctx context.Context) Response {
	list, err := d.subs.List(ctx)
	if err != nil {
		d.log.Error("subscribers query failed", "err", err)
		return text("GET_ALL_SUBSCRIBERS_FAILED;Database error.")
	}
	return withRows("GET_ALL_SUBSCRIBERS_SUCCESS", list)
}

func (d *Dispatcher) handleGetAllActivityLogs(ctx context.Context) Response {
	list, err := d.activity.ListAll(ctx)
	if err != nil {
		d.log.Error("activity log query failed", "err", err)
		return text("GET_ALL_ACTIVITY_LOGS_FAILED;Database error.")
	}
	return withRows("GET_ALL_ACTIVITY_LOGS_SUCCESS", list)
}

func (d *Dispatcher) handleSetFreezeStatus(ctx context.Context, payload string) Response {
	parts := strings.Split(payload, ";")
	if len(parts) != 2 {
		return text("SET_FREEZE_FAILED;Malformed request.")
	}
	code := parts[0]
	freeze := parts[1] == "1"
	if err := d.subs.SetFrozen(ctx, code, freeze); err != nil {
		d.log.Error("freeze update failed", "err", err, "code", code)
		return text("SET_FREEZE_FAILED;Database error.")
	}
	activityType := activity.TypeManuallyFrozen
	if !freeze {
		activityType = activity.TypeManuallyUnfrozen
	}
	_ = d.activity.Log(ctx, code, activityType, "Account status changed by a staff member.")
	return text("SET_FREEZE_SUCCESS")
}

func (d *Dispatcher) handleDailyCountReport(ctx context.Context, payload, activityType, tag string) Response {
	year, month, ok := parseYearMonth(payload)
	if !ok {
		return text("%s_FAILED;Invalid year/month.", tag)
	}
	data, err := d.activity.DailyCounts(ctx, activityType, year, month)
	if err != nil {
		d.log.Error("daily count report failed", "err", err, "type", activityType)
		return text("%s_FAILED;Database error.", tag)
	}
	return withRows(tag+"_SUCCESS", data)
}

func (d *Dispatcher) handleSubscriberParkingReport(ctx context.Context, payload string) Response {
	year, month, ok := parseYearMonth(payload)
	if !ok {
		return text("GET_SUBSCRIBER_PARKING_REPORT_FAILED;Invalid year/month.")
	}
	data, err := d.sessions.ParkingHoursPerSubscriber(ctx, year, month)
	if err != nil {
		d.log.Error("parking hours report failed", "err", err)
		return text("GET_SUBSCRIBER_PARKING_REPORT_FAILED;Database error.")
	}
	return withRows("GET_SUBSCRIBER_PARKING_REPORT_SUCCESS", data)
}

func (d *Dispatcher) handleSlotOccupancyReport(ctx context.Context, payload string) Response {
	year, month, ok := parseYearMonth(payload)
	if !ok {
		return text("GET_SLOT_OCCUPANCY_REPORT_FAILED;Invalid year/month.")
	}
	data, err := d.sessions.OccupancyPerSlot(ctx, year, month)
	if err != nil {
		d.log.Error("slot occupancy report failed", "err", err)
		return text("GET_SLOT_OCCUPANCY_REPORT_FAILED;Database error.")
	}
	return withRows("GET_SLOT_OCCUPANCY_REPORT_SUCCESS", data)
}

// handleExportMonthlyReport gathers all four monthly reports and writes
// them into one xlsx workbook on the server side; the reply carries the
// file path for staff to pick up.
func (d *Dispatcher) handleExportMonthlyReport(ctx context.Context, payload string) Response {
	year, month, ok := parseYearMonth(payload)
	if !ok {
		return text("EXPORT_FAILED;Invalid year/month.")
	}

	daily, err := d.activity.DailyCounts(ctx, activity.TypeParkCar, year, month)
	if err != nil {
		return d.exportError(err)
	}
	late, err := d.activity.DailyCounts(ctx, activity.TypeLateRetrieval, year, month)
	if err != nil {
		return d.exportError(err)
	}
	perSub, err := d.sessions.ParkingHoursPerSubscriber(ctx, year, month)
	if err != nil {
		return d.exportError(err)
	}
	perSlot, err := d.sessions.OccupancyPerSlot(ctx, year, month)
	if err != nil {
		return d.exportError(err)
	}

	path, err := reports.WriteWorkbook(d.exportDir, year, month, reports.Monthly{
		DailyParking:  daily,
		DailyLateness: late,
		PerSubscriber: perSub,
		PerSlot:       perSlot,
	})
	if err != nil {
		d.log.Error("report export failed", "err", err)
		return text("EXPORT_FAILED;Could not write workbook.")
	}
	return text("EXPORT_SUCCESS:%s", path)
}

func (d *Dispatcher) exportError(err error) Response {
	d.log.Error("report export query failed", "err", err)
	return text("EXPORT_FAILED;Database error.")
}

func parseYearMonth(payload string) (int, int, bool) {
	parts := strings.Split(payload, ";")
	if len(parts) != 2 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}
