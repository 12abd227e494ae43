package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/golang/freetype/truetype"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	log "github.com/sirupsen/logrus"
	"github.com/tanema/gween"
	"github.com/zucenko/tangerine/config"
	"github.com/zucenko/tangerine/engine"
	"github.com/zucenko/tangerine/hud"
	"github.com/zucenko/tangerine/model"
	"github.com/zucenko/tangerine/wallet"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	cellSize      = 20
	hudHeight     = 96
	bannerHeight  = 150
	tps           = 60
	actionTimeout = 5 * time.Minute
	maxLabels     = 64
)

var (
	screenWidth  = model.GridWidth * cellSize
	screenHeight = model.GridHeight*cellSize + hudHeight
)

var Font, MidFont, BigFont font.Face

var whiteImage = ebiten.NewImage(3, 3)

// whiteSubImage is the source of solid-colour triangles.
var whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)

func init() {
	whiteImage.Fill(color.White)

	tt, err := truetype.Parse(goregular.TTF)
	if err != nil {
		log.Fatal(err)
	}
	face := func(size float64) font.Face {
		return truetype.NewFace(tt, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
	Font, MidFont, BigFont = face(14), face(28), face(64)
}

var directions = map[ebiten.Key]model.Direction{
	ebiten.KeyArrowUp:    model.Up,
	ebiten.KeyArrowDown:  model.Down,
	ebiten.KeyArrowLeft:  model.Left,
	ebiten.KeyArrowRight: model.Right,
}

type Game struct {
	app     *App
	Panel   *Nine
	Tweens  map[*gween.Tween]*Action
	labels  hud.Cache[*ebiten.Image]
	results chan outcome

	busy      string
	notice    string
	noticeErr bool
	nativeFee *big.Int
	tokenFee  *big.Int

	pulse         float32
	bannerY       float32
	bannerSettled bool

	snap   engine.Snapshot
	wallet wallet.State
}

func NewGame(app *App) *Game {
	native, _ := app.Config.NativeFee()
	g := &Game{
		app:       app,
		Panel:     newPanel(COLOR_PANEL, COLOR_BORDER),
		Tweens:    make(map[*gween.Tween]*Action),
		labels:    hud.Cache[*ebiten.Image]{Limit: maxLabels, Drop: (*ebiten.Image).Dispose},
		results:   make(chan outcome, 8),
		nativeFee: native,
		pulse:     1,
		snap:      app.Engine.Snapshot(),
	}
	g.refreshFee()
	return g
}

// run starts one wallet or contract action in the background. Only one runs
// at a time.
func (g *Game) run(action string, fn func(ctx context.Context) error) {
	if g.busy != "" {
		g.say(fmt.Sprintf("still busy with %s", g.busy), false)
		return
	}
	g.busy = action
	g.say(action+"...", false)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		g.results <- outcome{action: action, err: fn(ctx)}
	}()
}

func (g *Game) refreshFee() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		g.results <- outcome{action: "price", fee: g.app.Gateway.TokenFee(ctx)}
	}()
}

func (g *Game) say(s string, isErr bool) {
	g.notice, g.noticeErr = s, isErr
}

// collect applies finished background actions.
func (g *Game) collect() {
	for {
		select {
		case o := <-g.results:
			if o.fee != nil {
				g.tokenFee = o.fee
				continue
			}
			if o.action == g.busy {
				g.busy = ""
			}
			if o.err != nil {
				log.Warnf("%s failed: %v", o.action, o.err)
				g.say(hud.Error(o.err), true)
			} else {
				g.say(o.action+" done", false)
			}
		default:
			return
		}
	}
}

func (g *Game) pay(ctx context.Context) error {
	account, err := g.app.Session.Ready()
	if err != nil {
		return err
	}
	return g.app.Engine.Pay(ctx, account.Hex())
}

func (g *Game) claim(ctx context.Context) error {
	r, err := g.app.Gateway.ClaimReward(ctx)
	if err != nil {
		return err
	}
	log.WithField("tx", r.TxHash.Hex()).Info("reward claimed")
	return nil
}

func (g *Game) input() {
	ses, eng := g.app.Session, g.app.Engine
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.run("connect", ses.Connect)
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		ses.Disconnect()
		g.say("wallet disconnected", false)
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		g.run("switch network", ses.EnsureCorrectNetwork)
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.run("sign in", ses.SignIn)
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		method := wallet.PayToken
		if g.wallet.PaymentMethod == wallet.PayToken {
			method = wallet.PayNative
		}
		ses.SetPaymentMethod(method)
		if method == wallet.PayToken {
			g.refreshFee()
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyP), inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		g.run("payment", g.pay)
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		if err := eng.Retry(); err == nil {
			g.say("searching for an opponent", false)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if g.snap.Phase == model.GameOver && g.snap.Match.Won(g.snap.Match.Player.ID) {
			g.run("claim reward", g.claim)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if err := eng.PlayAgain(); err == nil {
			g.labels.Reset()
			g.say("", false)
		}
	}
	for key, d := range directions {
		if inpututil.IsKeyJustPressed(key) {
			eng.SetDirection(d)
		}
	}
}

// observe starts the animations for what changed since the last frame.
func (g *Game) observe(s engine.Snapshot) {
	prev := g.snap
	g.snap = s
	if s.Phase == model.Playing && s.Countdown > 0 && s.Countdown != prev.Countdown {
		g.pulseCountdown()
	}
	if s.Phase == model.GameOver && prev.Phase != model.GameOver {
		g.dropBanner()
	}
}

func (g *Game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	g.collect()
	g.updateTweens(1.0 / tps)
	g.wallet = g.app.Session.State()
	g.input()
	g.app.Engine.Frame()
	g.observe(g.app.Engine.Snapshot())
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(COLOR_BACKGROUND)
	s := g.snap
	if s.Match != nil {
		g.drawMatch(screen, s.Match)
	}
	g.drawHUD(screen)

	switch s.Phase {
	case model.GameOver:
		g.drawBanner(screen, s.Match)
	case model.Playing:
		if head := hud.Headline(s); head != "" {
			g.drawCentered(screen, head, BigFont, screenHeight/2, float64(g.pulse))
		}
	default:
		mid := hudHeight + (screenHeight-hudHeight)/2
		g.drawCentered(screen, hud.Headline(s), MidFont, mid-40, 1)
		g.drawCentered(screen, hud.Fee(g.wallet.PaymentMethod, g.nativeFee, g.tokenFee), Font, mid+10, 1)
		g.drawCentered(screen, hud.Reward(g.app.Config.RewardEstimate(), g.app.Config.PlatformFeePercentage), Font, mid+34, 1)
		if s.EntryTx != "" {
			g.drawCentered(screen, "entry tx "+hud.ShortID(s.EntryTx), Font, mid+58, 1)
		}
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// board returns the cell size and the top-left corner of the maze.
func board(m *model.Maze) (cell, ox, oy float32) {
	cw := float32(screenWidth) / float32(m.Width)
	ch := float32(screenHeight-hudHeight) / float32(m.Height)
	cell = cw
	if ch < cell {
		cell = ch
	}
	ox = (float32(screenWidth) - cell*float32(m.Width)) / 2
	oy = hudHeight + (float32(screenHeight-hudHeight)-cell*float32(m.Height))/2
	return
}

func (g *Game) drawMatch(screen *ebiten.Image, m *engine.Match) {
	cell, ox, oy := board(m.Maze)
	for y := 0; y < m.Maze.Height; y++ {
		for x := 0; x < m.Maze.Width; x++ {
			if m.Maze.Walls[y][x] {
				vector.DrawFilledRect(screen, ox+float32(x)*cell, oy+float32(y)*cell, cell, cell, COLOR_WALL, false)
			}
		}
	}
	for _, d := range m.Dots {
		vector.DrawFilledCircle(screen, ox+(float32(d.X)+.5)*cell, oy+(float32(d.Y)+.5)*cell, cell/6, COLOR_DOT, true)
	}
	drawPacman(screen, m.Opponent, cell, ox, oy, COLOR_OPPONENT)
	drawPacman(screen, m.Player, cell, ox, oy, COLOR_PLAYER)
}

func drawPacman(screen *ebiten.Image, p model.Participant, cell, ox, oy float32, clr color.RGBA) {
	cx := ox + (float32(p.X)+.5)*cell
	cy := oy + (float32(p.Y)+.5)*cell
	vector.DrawFilledCircle(screen, cx, cy, cell/2, clr, true)
	fillTriangle(screen, p.Mouth(float64(cell)), ox, oy, COLOR_BACKGROUND)
}

func fillTriangle(dst *ebiten.Image, pts [3]model.Point, ox, oy float32, clr color.RGBA) {
	var path vector.Path
	path.MoveTo(ox+float32(pts[0].X), oy+float32(pts[0].Y))
	path.LineTo(ox+float32(pts[1].X), oy+float32(pts[1].Y))
	path.LineTo(ox+float32(pts[2].X), oy+float32(pts[2].Y))
	path.Close()
	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	for i := range vs {
		vs[i].SrcX, vs[i].SrcY = 1, 1
		vs[i].ColorR = float32(clr.R) / 0xff
		vs[i].ColorG = float32(clr.G) / 0xff
		vs[i].ColorB = float32(clr.B) / 0xff
		vs[i].ColorA = 1
	}
	dst.DrawTriangles(vs, is, whiteSubImage, &ebiten.DrawTrianglesOptions{AntiAlias: true})
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	g.Panel.SetPosition(4, 4)
	g.Panel.SetSize(screenWidth-8, hudHeight-8)
	g.Panel.Draw(screen)

	text.Draw(screen, hud.Status(g.wallet), Font, 16, 26, COLOR_TEXT)
	second := fmt.Sprintf("%s   paying with %s", hud.Fee(g.wallet.PaymentMethod, g.nativeFee, g.tokenFee), g.wallet.PaymentMethod.Name())
	if g.snap.Phase == model.Playing {
		second = hud.Scores(g.snap.Match)
	}
	text.Draw(screen, second, Font, 16, 46, COLOR_TEXT)

	text.Draw(screen, strings.Join(hud.Hints(g.wallet, g.snap), "  "), Font, 16, 66, COLOR_HINT)

	notice, clr := g.notice, COLOR_TEXT
	if g.noticeErr {
		clr = COLOR_ERROR
	}
	if notice == "" {
		notice = hud.Error(g.snap.Err)
		clr = COLOR_ERROR
	}
	text.Draw(screen, notice, Font, 16, 84, clr)
}

func (g *Game) drawBanner(screen *ebiten.Image, m *engine.Match) {
	g.Panel.SetPosition(40, int(g.bannerY))
	g.Panel.SetSize(screenWidth-80, bannerHeight)
	g.Panel.Draw(screen)
	top := int(g.bannerY)
	g.drawCentered(screen, hud.Result(m), MidFont, top+40, 1)
	if !g.bannerSettled {
		return
	}
	if m.Won(m.Player.ID) {
		g.drawCentered(screen, hud.Reward(g.app.Config.RewardEstimate(), g.app.Config.PlatformFeePercentage), Font, top+80, 1)
	}
	g.drawCentered(screen, hud.Scores(m), Font, top+110, 1)
}

// label renders s once and caches the image.
func (g *Game) label(s string, face font.Face) *ebiten.Image {
	return g.labels.Get(fmt.Sprintf("%p|%s", face, s), func() *ebiten.Image {
		b := text.BoundString(face, s)
		img := ebiten.NewImage(b.Dx()+4, b.Dy()+4)
		text.Draw(img, s, face, -b.Min.X+2, -b.Min.Y+2, COLOR_TEXT)
		return img
	})
}

func (g *Game) drawCentered(screen *ebiten.Image, s string, face font.Face, cy int, scale float64) {
	if s == "" {
		return
	}
	img := g.label(s, face)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-float64(w)/2, -float64(h)/2)
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(float64(screenWidth)/2, float64(cy))
	screen.DrawImage(img, op)
}

func main() {
	cfgPath := flag.String("config", os.Getenv("TANGERINE_CONFIG"), "YAML config file")
	flag.Parse()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Tangerine Pacman PVP")
	if err := ebiten.RunGame(NewGame(app)); err != nil {
		log.Fatal(err)
	}
}
