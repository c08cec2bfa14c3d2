package tg

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pvzzle/walletd/internal/account"
	"github.com/pvzzle/walletd/internal/bus"
	"github.com/pvzzle/walletd/internal/storage"
	"github.com/pvzzle/walletd/internal/transfers"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
)

const (
	cbTransfer    = "transfer"
	cbIBCTransfer = "ibc_transfer"
	cbStatus      = "status"
	cbHistory     = "history"
	cbClearEvents = "clear_events"
	cbClearErrors = "clear_errors"
	cbBackToMain  = "back_main"
)

// BalanceView exposes cached balances for the status screen.
type BalanceView interface {
	Get(address string) (map[string]decimal.Decimal, bool)
}

type Options struct {
	Account       account.Account
	Tokens        map[string]string // symbol -> token address
	DefaultToken  string
	AllowedChatID int64 // 0 allows every chat
	NotifyBuffer  int
}

type Service struct {
	bot       *tgbot.Bot
	submitter *transfers.Submitter
	balances  BalanceView
	repo      storage.Repository

	opts     Options
	notifyCh chan bus.Notification
	state    *StateStore
}

func NewService(
	b *tgbot.Bot,
	submitter *transfers.Submitter,
	balances BalanceView,
	repo storage.Repository,
	opts Options,
) *Service {
	if opts.NotifyBuffer <= 0 {
		opts.NotifyBuffer = 64
	}
	s := &Service{
		bot:       b,
		submitter: submitter,
		balances:  balances,
		repo:      repo,
		opts:      opts,
		notifyCh:  make(chan bus.Notification, opts.NotifyBuffer),
		state:     NewStateStore(),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, s.onStart)

	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbTransfer, tgbot.MatchTypeExact, s.onCbTransfer)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbIBCTransfer, tgbot.MatchTypeExact, s.onCbIBCTransfer)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbStatus, tgbot.MatchTypeExact, s.onCbStatus)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbHistory, tgbot.MatchTypeExact, s.onCbHistory)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbClearEvents, tgbot.MatchTypeExact, s.onCbClearEvents)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbClearErrors, tgbot.MatchTypeExact, s.onCbClearErrors)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBackToMain, tgbot.MatchTypeExact, s.onCbBackToMain)

	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, s.onAnyText)
}

func (s *Service) StartNotifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notifyCh:
			_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: n.ChatID,
				Text:   n.Text,
			})
			if err != nil {
				log.Printf("[tg] send notify error: %v", err)
			}
		}
	}
}

func (s *Service) notify(ctx context.Context, chatID int64, text string) {
	select {
	case s.notifyCh <- bus.Notification{ChatID: chatID, Text: text}:
	case <-ctx.Done():
	}
}

func (s *Service) allowed(chatID int64) bool {
	return s.opts.AllowedChatID == 0 || s.opts.AllowedChatID == chatID
}

// callbackChat answers the callback and returns its chat, or false when the
// update should be ignored.
func (s *Service) callbackChat(ctx context.Context, b *tgbot.Bot, upd *models.Update) (int64, bool) {
	cb := upd.CallbackQuery
	if cb == nil || cb.Message.Type == models.MaybeInaccessibleMessageTypeInaccessibleMessage {
		return 0, false
	}
	_ = s.answerCallback(ctx, b, cb.ID)

	chatID := cb.Message.Message.Chat.ID
	return chatID, s.allowed(chatID)
}

func (s *Service) answerCallback(ctx context.Context, b *tgbot.Bot, callbackID string) error {
	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	return err
}

func mainMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Transfer", CallbackData: cbTransfer},
				{Text: "IBC transfer", CallbackData: cbIBCTransfer},
			},
			{
				{Text: "Status", CallbackData: cbStatus},
				{Text: "History", CallbackData: cbHistory},
			},
			{
				{Text: "Clear events", CallbackData: cbClearEvents},
				{Text: "Clear errors", CallbackData: cbClearErrors},
			},
		},
	}
}

func backMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Back", CallbackData: cbBackToMain}},
		},
	}
}

func (s *Service) onStart(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil || !s.allowed(upd.Message.Chat.ID) {
		return
	}
	chatID := upd.Message.Chat.ID
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        fmt.Sprintf("Wallet %s\n\nChoose an action:", s.opts.Account),
		ReplyMarkup: mainMenu(),
	})
}

func (s *Service) onCbTransfer(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateAwaitTransfer)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Send: <target> <amount> [faucet] [token=SYM] [memo=text]",
	})
}

func (s *Service) onCbIBCTransfer(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateAwaitIBCTransfer)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Send: <target> <amount> <channel-N> [port=transfer] [fee=0] [token=SYM] [memo=text]",
	})
}

func (s *Service) onAnyText(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil || !s.allowed(upd.Message.Chat.ID) {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	if strings.HasPrefix(text, "/") {
		return
	}

	switch s.state.Get(chatID) {
	case StateAwaitTransfer:
		s.handleTransfer(ctx, b, chatID, text)

	case StateAwaitIBCTransfer:
		s.handleIBCTransfer(ctx, b, chatID, text)

	default:
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Use /start to open the menu.",
		})
	}
}

func (s *Service) resolveToken(symbol string) (transfers.Token, error) {
	if symbol == "" {
		symbol = s.opts.DefaultToken
	}
	addr, ok := s.opts.Tokens[symbol]
	if !ok {
		return transfers.Token{}, fmt.Errorf("unknown token %q", symbol)
	}
	return transfers.Token{Symbol: symbol, Address: addr}, nil
}

func (s *Service) handleTransfer(ctx context.Context, b *tgbot.Bot, chatID int64, line string) {
	in, err := ParseTransferInput(line)
	var token transfers.Token
	if err == nil {
		token, err = s.resolveToken(in.Token)
	}
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Could not read the transfer: %v. Try again.", err),
		})
		return
	}
	s.state.Set(chatID, StateIdle)

	args := transfers.TransferArgs{
		Account:   s.opts.Account,
		Target:    in.Target,
		Token:     token,
		Amount:    in.Amount,
		Memo:      in.Memo,
		Shielded:  IsShieldedAddress(in.Target),
		UseFaucet: in.UseFaucet,
	}

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("⏳ Submitting %s %s to %s…", in.Amount.String(), token.Symbol, in.Target),
	})

	go func() {
		tx, err := s.submitter.SubmitTransfer(ctx, args)
		if err != nil {
			s.notify(ctx, chatID, "❌ Transfer failed: "+err.Error())
			return
		}

		eventType := storage.EventSubmit
		if args.UseFaucet {
			eventType = storage.EventFaucet
		}
		if err := s.repo.AddChatEvent(ctx, chatID, tx.AppliedHash, eventType); err != nil {
			log.Printf("[tg] db chat event error: %v", err)
		}
		s.notify(ctx, chatID, FormatTransaction(tx))
	}()
}

func (s *Service) handleIBCTransfer(ctx context.Context, b *tgbot.Bot, chatID int64, line string) {
	in, err := ParseIBCTransferInput(line)
	var token transfers.Token
	if err == nil {
		token, err = s.resolveToken(in.Token)
	}
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Could not read the IBC transfer: %v. Try again.", err),
		})
		return
	}
	s.state.Set(chatID, StateIdle)

	args := transfers.IBCTransferArgs{
		Account:   s.opts.Account,
		Target:    in.Target,
		Token:     token,
		Amount:    in.Amount,
		Memo:      in.Memo,
		ChannelID: in.ChannelID,
		PortID:    in.PortID,
		FeeAmount: in.Fee,
	}

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("⏳ Submitting %s %s to %s over %s…", in.Amount.String(), token.Symbol, in.Target, in.ChannelID),
	})

	go func() {
		tx, err := s.submitter.SubmitIBCTransfer(ctx, args)
		if err != nil {
			var rej *transfers.RejectionError
			if errors.As(err, &rej) {
				s.notify(ctx, chatID, "❌ IBC transfer rejected: "+rej.Error())
				return
			}
			s.notify(ctx, chatID, "❌ IBC transfer failed: "+err.Error())
			return
		}

		if err := s.repo.AddChatEvent(ctx, chatID, tx.AppliedHash, storage.EventSubmit); err != nil {
			log.Printf("[tg] db chat event error: %v", err)
		}
		s.notify(ctx, chatID, FormatTransaction(tx))
	}()
}

func (s *Service) onCbStatus(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)
	s.sendStatus(ctx, b, chatID)
}

func (s *Service) sendStatus(ctx context.Context, b *tgbot.Bot, chatID int64) {
	var bal map[string]decimal.Decimal
	if s.balances != nil {
		bal, _ = s.balances.Get(s.opts.Account.Address)
	}

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        FormatState(s.submitter.Store().Snapshot(), bal),
		ReplyMarkup: mainMenu(),
	})
}

func (s *Service) onCbClearEvents(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.submitter.Store().ClearEvents()
	s.sendStatus(ctx, b, chatID)
}

func (s *Service) onCbClearErrors(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.submitter.Store().ClearErrors()
	s.sendStatus(ctx, b, chatID)
}

func (s *Service) onCbBackToMain(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        "Main menu:",
		ReplyMarkup: mainMenu(),
	})
}

func (s *Service) onCbHistory(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}

	items, err := s.repo.ListHistory(ctx, chatID, 10)
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Could not read history: %v", err),
		})
		return
	}

	if len(items) == 0 {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:      chatID,
			Text:        "History is empty.",
			ReplyMarkup: backMenu(),
		})
		return
	}

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        FormatHistory(items),
		ReplyMarkup: backMenu(),
	})
}
