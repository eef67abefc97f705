package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aditya/go-carpool/internal/control"
	"github.com/aditya/go-carpool/internal/models"
)

// User-facing texts. Messages are sent with HTML parse mode, so every
// user-supplied value goes through html.EscapeString.

const (
	TextStale        = "This button is no longer valid."
	TextGenericError = "Something went wrong, please try again later."
	TextEnterPrice   = "Send your price as a number, for example 50000."
	TextNotCancelled = "OK, your request stays active."
	TextSlowDown     = "Too many actions, please wait a moment."
	TextNoActive     = "You have no active request. Use /ride or /parcel to create one."
	TextPickRoute    = "Choose your route:"
	TextAskTime      = "When do you want to leave? For example: today 18:00"
	TextAskSeats     = "How many seats do you need? (1-8)"
	TextAskPackage   = "What are you sending? For example: documents, a small box"
	TextAskDetails   = "Add pickup details as text, or send a voice note."
	TextWentOffline  = "You are offline and will not receive new requests."
	TextCleared      = "Cancelled. Nothing is pending now."
	TextCarrierOnly  = "This command is for approved carriers."
	TextOfferSent    = "Offer sent"
	TextTaken        = "Taken"
	TextAccepted     = "Accepted"
	TextDeclined     = "Declined"
	TextHelp         = "/ride - find a ride\n/parcel - send a parcel\n/myrequest - your active request\n/radar - open requests (carriers)\n/online, /offline - carrier availability\n/cancel - cancel the current step"
)

func esc(s string) string {
	return html.EscapeString(s)
}

func formatPrice(p int64) string {
	s := fmt.Sprintf("%d", p)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RequestSummary is the card carriers see during fan-out and on the radar.
func RequestSummary(req *models.Request) string {
	var b strings.Builder
	if req.Type == models.RequestTypeParcel {
		fmt.Fprintf(&b, "📦 <b>Parcel</b> %s → %s\n", esc(req.Origin), esc(req.Destination))
		fmt.Fprintf(&b, "Contents: %s\n", esc(req.PackageKind))
	} else {
		fmt.Fprintf(&b, "🚗 <b>Ride</b> %s → %s\n", esc(req.Origin), esc(req.Destination))
		fmt.Fprintf(&b, "Seats: %d\n", req.Seats)
	}
	fmt.Fprintf(&b, "Time: %s", esc(req.DesiredTime))
	if req.LocationDetail != "" {
		fmt.Fprintf(&b, "\nDetails: %s", esc(req.LocationDetail))
	}
	return b.String()
}

// ActionKeyboard is the single action a carrier can take on a request card.
func ActionKeyboard(req *models.Request) Keyboard {
	if req.IsOperatorOriginated() {
		return Keyboard{Row(Button{Text: "✅ Take it", Control: control.Claim(req.ID)})}
	}
	return Keyboard{Row(Button{Text: "💰 Make an offer", Control: control.Bid(req.ID)})}
}

func OfferReceived(req *models.Request, offer *models.Offer, carrier *models.Profile) (string, Keyboard) {
	name, car := "A carrier", ""
	if carrier != nil {
		name, car = carrier.Name, carrier.CarModel
	}
	text := fmt.Sprintf("💰 <b>New offer</b> for %s → %s\n%s", esc(req.Origin), esc(req.Destination), esc(name))
	if car != "" {
		text += fmt.Sprintf(" (%s)", esc(car))
	}
	text += fmt.Sprintf("\nPrice: <b>%s</b>", formatPrice(offer.Price))
	kb := Keyboard{Row(
		Button{Text: "✅ Accept", Control: control.Accept(req.ID, offer.ID)},
		Button{Text: "❌ Decline", Control: control.Decline(req.ID, offer.ID)},
	)}
	return text, kb
}

func BidSubmitted(price int64) string {
	return fmt.Sprintf("Your offer of %s was sent. You will be notified when the requester decides.", formatPrice(price))
}

// MatchedForRequester reveals the carrier's contact to the requester.
func MatchedForRequester(req *models.Request, offer *models.Offer, carrier *models.Profile) (string, Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "🤝 <b>Offer accepted</b> (%s)\n", formatPrice(offer.Price))
	if carrier != nil {
		fmt.Fprintf(&b, "Carrier: %s\nPhone: %s", esc(carrier.Name), esc(carrier.Phone))
		if carrier.CarModel != "" {
			fmt.Fprintf(&b, "\nCar: %s", esc(carrier.CarModel))
		}
	}
	return b.String(), Keyboard{Row(Button{Text: "🏁 Completed", Control: control.Complete(req.ID)})}
}

// MatchedForCarrier reveals the requester's contact to the accepted carrier.
func MatchedForCarrier(req *models.Request, requester *models.Profile) (string, Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "🤝 <b>Your offer was accepted</b>\n%s", RequestSummary(req))
	if requester != nil {
		fmt.Fprintf(&b, "\nRequester: %s\nPhone: %s", esc(requester.Name), esc(requester.Phone))
	}
	return b.String(), Keyboard{Row(Button{Text: "🏁 Completed", Control: control.Complete(req.ID)})}
}

func OfferDeclined(req *models.Request, entry models.BlockEntry, now time.Time) string {
	text := fmt.Sprintf("Your offer for %s → %s was declined.", esc(req.Origin), esc(req.Destination))
	if entry.IsBlocked(now) {
		mins := int(entry.BlockedUntil.Sub(now).Round(time.Minute).Minutes())
		text += fmt.Sprintf("\nYou cannot send offers for this request for %d min.", mins)
	}
	return text
}

func ClaimConfirmed(req *models.Request) string {
	text := fmt.Sprintf("✅ <b>Request taken</b>\n%s", RequestSummary(req))
	if req.ContactPhone != nil {
		text += fmt.Sprintf("\nContact: %s", esc(*req.ContactPhone))
	}
	return text
}

func RequestCreated(req *models.Request, notified int) string {
	return fmt.Sprintf("Your request %s → %s is live. %d carriers were notified.", esc(req.Origin), esc(req.Destination), notified)
}

func RequestCancelledForCarrier(req *models.Request) string {
	return fmt.Sprintf("❌ The request %s → %s (%s) was cancelled.", esc(req.Origin), esc(req.Destination), esc(req.DesiredTime))
}

func RequestCompleted(req *models.Request) string {
	return fmt.Sprintf("🏁 The request %s → %s is completed. Thank you!", esc(req.Origin), esc(req.Destination))
}

// MyRequest is the requester's view of their active request.
func MyRequest(req *models.Request) (string, Keyboard) {
	text := fmt.Sprintf("%s\nStatus: <b>%s</b>", RequestSummary(req), esc(req.Status))
	row := Row(Button{Text: "🗑 Cancel", Control: control.Cancel(req.ID)})
	if req.Status == models.RequestStatusMatched {
		if offer := req.AcceptedBid(); offer != nil {
			text += fmt.Sprintf("\nAgreed price: %s", formatPrice(offer.Price))
		}
		row = append(row, Button{Text: "🏁 Completed", Control: control.Complete(req.ID)})
	}
	return text, Keyboard{row}
}

func CancelConfirm(req *models.Request) (string, Keyboard) {
	return "Cancel this request?", Keyboard{Row(
		Button{Text: "Yes, cancel", Control: control.CancelYes(req.ID)},
		Button{Text: "No", Control: control.CancelNo(req.ID)},
	)}
}

func RequestCancelled() string {
	return "Your request was cancelled."
}

// Radar renders one page of open requests with an action per request and
// page navigation.
func Radar(reqs []*models.Request, page, total, pageSize int) (string, Keyboard) {
	if len(reqs) == 0 {
		return "No open requests right now.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📡 <b>Open requests</b> (%d)\n", total)
	kb := Keyboard{}
	for i, req := range reqs {
		fmt.Fprintf(&b, "\n<b>%d.</b> %s\n", page*pageSize+i+1, RequestSummary(req))
		action := ActionKeyboard(req)[0][0]
		action.Text = fmt.Sprintf("%d. %s", page*pageSize+i+1, action.Text)
		kb = append(kb, Row(action))
	}
	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Text: "⬅️", Control: control.RadarPage(page - 1)})
	}
	if (page+1)*pageSize < total {
		nav = append(nav, Button{Text: "➡️", Control: control.RadarPage(page + 1)})
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	return b.String(), kb
}

// RouteKeyboard offers one button per route; build picks the control kind.
func RouteKeyboard(routes []models.Route, build func(key string) control.Control) Keyboard {
	kb := Keyboard{}
	for _, r := range routes {
		kb = append(kb, Row(Button{Text: fmt.Sprintf("%s → %s", r.Origin, r.Destination), Control: build(r.Key)}))
	}
	return kb
}

func WentOnline(route models.Route) string {
	return fmt.Sprintf("You are online on %s → %s and will receive new requests.", esc(route.Origin), esc(route.Destination))
}

func NewCarrier(p *models.Profile) string {
	return fmt.Sprintf("🆕 <b>Carrier approved</b>\n%s (%d)\nPhone: %s\nCar: %s\nRoute: %s",
		esc(p.Name), p.ID, esc(p.Phone), esc(p.CarModel), esc(p.Route))
}

func Diagnostic(where string, err interface{}) string {
	return fmt.Sprintf("⚠️ <b>Unhandled failure</b> in %s\n<code>%s</code>", esc(where), esc(fmt.Sprint(err)))
}
