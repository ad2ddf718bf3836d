package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"guessescrow/internal/address"
	"guessescrow/internal/model"
	"guessescrow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(e *env, caller address.Address, guess, stake uint64, requestID string) (*PlayResult, error) {
	return e.settlements.Play(context.Background(), &PlayRequest{
		Caller:    caller,
		Guess:     guess,
		Stake:     stake,
		RequestID: requestID,
	})
}

// 猜错：押注进入资金池，游戏保持 OPEN
func TestPlayLoss(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)
	e.airdrop(t, player, 100)

	result, err := play(e, player, 3, 50, "p-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeLoss, result.Outcome)
	assert.Equal(t, uint64(1050), result.House.RecordedBalance)
	assert.False(t, result.Game.Settled)
	assert.NotEmpty(t, result.SettlementNo)

	assert.Equal(t, uint64(1050), e.recorded(t))
	assert.Equal(t, uint64(1050), e.balance(t, e.vault))
	assert.Equal(t, uint64(50), e.balance(t, player))
	assert.Equal(t, int64(1), e.countEvents(t, EventGameLost))

	// 输了可以继续玩
	result, err = play(e, player, 4, 50, "p-2")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeLoss, result.Outcome)
	assert.Equal(t, uint64(1100), e.recorded(t))
	assert.Equal(t, uint64(0), e.balance(t, player))
}

// 猜中：资金池派奖，游戏结算
func TestPlayWin(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)

	result, err := play(e, player, 7, 50, "p-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeWin, result.Outcome)
	assert.Equal(t, uint64(950), result.House.RecordedBalance)
	assert.True(t, result.Game.Settled)
	assert.Equal(t, model.GameStateSettled, result.Game.State())

	assert.Equal(t, uint64(950), e.recorded(t))
	assert.Equal(t, uint64(950), e.balance(t, e.vault))
	assert.Equal(t, uint64(50), e.balance(t, player))
	assert.Equal(t, int64(1), e.countEvents(t, EventGameSettled))

	game, err := e.games.GetByOwner(context.Background(), player)
	require.NoError(t, err)
	assert.True(t, game.Settled)
	assert.NotNil(t, game.SettledAt)
}

// 已结算的游戏不能再玩，任何猜测都一样
func TestPlayAfterWinFails(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)
	e.airdrop(t, player, 100)

	_, err := play(e, player, 7, 50, "")
	require.NoError(t, err)
	houseBefore, gameBefore := e.snapshot(t, player)

	_, err = play(e, player, 7, 50, "")
	assert.ErrorIs(t, err, ErrAlreadySettled)
	_, err = play(e, player, 1, 10, "")
	assert.ErrorIs(t, err, ErrAlreadySettled)

	houseAfter, gameAfter := e.snapshot(t, player)
	assert.Equal(t, houseBefore, houseAfter)
	assert.Equal(t, gameBefore, gameAfter)
	assert.Equal(t, uint64(150), e.balance(t, player))
}

// 非 owner 调用被拒绝，记录逐字节不变
func TestPlayByStrangerRejected(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	game := e.createGame(t, player, 7)
	e.airdrop(t, stranger, 100)
	houseBefore, gameBefore := e.snapshot(t, player)

	gameAddr := address.MustParse(game.Address)
	for _, guess := range []uint64{3, 7} {
		_, err := e.settlements.Play(context.Background(), &PlayRequest{
			Caller: stranger,
			Game:   gameAddr,
			Guess:  guess,
			Stake:  50,
		})
		assert.ErrorIs(t, err, ErrAuthorizationMismatch)
	}

	houseAfter, gameAfter := e.snapshot(t, player)
	assert.Equal(t, houseBefore, houseAfter)
	assert.Equal(t, gameBefore, gameAfter)
	assert.Equal(t, uint64(100), e.balance(t, stranger))
	assert.Equal(t, uint64(1000), e.balance(t, e.vault))
}

func TestPlayInsufficientPlayerFunds(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)
	e.airdrop(t, player, 10)
	houseBefore, gameBefore := e.snapshot(t, player)

	_, err := play(e, player, 3, 50, "p-1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	houseAfter, gameAfter := e.snapshot(t, player)
	assert.Equal(t, houseBefore, houseAfter)
	assert.Equal(t, gameBefore, gameAfter)
	assert.Equal(t, uint64(10), e.balance(t, player))

	// 失败的请求号不占用
	e.airdrop(t, player, 40)
	result, err := play(e, player, 3, 50, "p-1")
	require.NoError(t, err)
	assert.False(t, result.Replayed)
}

func TestPlayWinExceedingBankroll(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 10)
	e.createGame(t, player, 7)

	_, err := play(e, player, 7, 50, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	game, err := e.games.GetByOwner(context.Background(), player)
	require.NoError(t, err)
	assert.False(t, game.Settled)
	assert.Equal(t, uint64(10), e.recorded(t))
	assert.Equal(t, uint64(0), e.balance(t, player))
}

func TestPlayPreconditions(t *testing.T) {
	e := newEnv(t)

	_, err := play(e, player, 7, 50, "")
	assert.ErrorIs(t, err, ErrNotInitialized)

	e.openHouse(t, 1000)
	_, err = play(e, player, 7, 50, "")
	assert.ErrorIs(t, err, ErrNotInitialized)

	e.createGame(t, player, 7)
	_, err = play(e, player, 7, 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = play(e, player, 3, 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = play(e, player, 7, model.MaxAmount+1, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, uint64(1000), e.recorded(t))
}

func TestPlayLossOverflow(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, model.MaxAmount-10)
	e.createGame(t, player, 7)
	e.airdrop(t, player, 100)

	_, err := play(e, player, 3, 11, "")
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, model.MaxAmount-10, e.recorded(t))
	assert.Equal(t, uint64(100), e.balance(t, player))
}

func TestPlayReplayByRequestID(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)
	e.createGame(t, stranger, 7)
	e.airdrop(t, player, 100)
	e.airdrop(t, stranger, 100)

	first, err := play(e, player, 3, 50, "dup")
	require.NoError(t, err)

	again, err := play(e, player, 3, 50, "dup")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.SettlementNo, again.SettlementNo)
	assert.Equal(t, model.OutcomeLoss, again.Outcome)
	assert.Equal(t, uint64(1050), e.recorded(t))
	assert.Equal(t, uint64(50), e.balance(t, player))

	_, err = play(e, stranger, 3, 50, "dup")
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	list, total, err := e.settlements.ListSettlements(context.Background(), player, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, first.SettlementNo, list[0].SettlementNo)
}

// 同一游戏并发猜中，只能有一次派奖
func TestConcurrentWinsPayOnce(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		settled int
		others  []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := play(e, player, 7, 100, fmt.Sprintf("win-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && result.Outcome == model.OutcomeWin:
				wins++
			case errors.Is(err, ErrAlreadySettled):
				settled++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, settled)
	assert.Equal(t, uint64(900), e.recorded(t))
	assert.Equal(t, uint64(900), e.balance(t, e.vault))
	assert.Equal(t, uint64(100), e.balance(t, player))
}

// 同一游戏并发猜错，账面余额精确累加
func TestConcurrentLossesKeepBalanceExact(t *testing.T) {
	e := newEnv(t)
	e.openHouse(t, 1000)
	e.createGame(t, player, 7)
	e.airdrop(t, player, 1000)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := play(e, player, uint64(100+i), 10, fmt.Sprintf("loss-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, uint64(1100), e.recorded(t))
	assert.Equal(t, uint64(1100), e.balance(t, e.vault))
	assert.Equal(t, uint64(900), e.balance(t, player))
}

// 账面余额等于所有成功操作的增减之和，并且始终等于金库真实余额
func TestRecordedBalanceMirrorsTransfers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.openHouse(t, 500)
	expected := uint64(500)

	players := []address.Address{testutil.Identity(21), testutil.Identity(22), testutil.Identity(23)}
	for i, p := range players {
		e.airdrop(t, p, 1000)
		e.createGame(t, p, uint64(i+1))
	}

	steps := []struct {
		caller address.Address
		guess  uint64
		stake  uint64
		delta  int64 // 0 表示预期失败
	}{
		{players[0], 9, 100, 100},
		{players[1], 2, 300, -300},
		{players[1], 2, 10, 0},
		{players[2], 5, 2000, 0},
		{players[2], 3, 200, -200},
		{players[0], 1, 60, -60},
		{players[0], 1, 60, 0},
	}
	for i, step := range steps {
		_, err := play(e, step.caller, step.guess, step.stake, fmt.Sprintf("step-%d", i))
		if step.delta == 0 {
			assert.Error(t, err, "step %d", i)
		} else {
			require.NoError(t, err, "step %d", i)
			expected = uint64(int64(expected) + step.delta)
		}
		assert.Equal(t, expected, e.recorded(t), "step %d", i)
		assert.Equal(t, expected, e.balance(t, e.vault), "step %d", i)
	}

	e.airdrop(t, funder, 250)
	_, err := e.houses.Fund(ctx, funder, 250, "fund-1")
	require.NoError(t, err)
	_, err = e.houses.Withdraw(ctx, authority, 40, "withdraw-1")
	require.NoError(t, err)
	expected += 250 - 40
	assert.Equal(t, expected, e.recorded(t))
	assert.Equal(t, expected, e.balance(t, e.vault))
}
