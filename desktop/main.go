package main

import (
	"os"
	goruntime "runtime"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/livetemplate/syntaxstudio"
)

func main() {
	app := NewApp()

	err := wails.Run(&options.App{
		Title:            "Syntax Studio",
		Width:            1280,
		Height:           860,
		MinWidth:         800,
		MinHeight:        600,
		BackgroundColour: &options.RGBA{R: 30, G: 30, B: 30, A: 1},
		Menu:             createMenu(app),
		AssetServer: &assetserver.Options{
			Handler: app.GetHandler(),
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []any{
			app,
		},
		Mac: &mac.Options{
			TitleBar: mac.TitleBarDefault(),
			About: &mac.AboutInfo{
				Title:   "Syntax Studio",
				Message: "Version " + syntaxstudio.Version + "\n\nLive HTML, CSS and JS playground.\nBuilt with Wails and Go.",
			},
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
		},
	})

	if err != nil {
		println("Error:", err.Error())
		os.Exit(1)
	}
}

func createMenu(app *App) *menu.Menu {
	appMenu := menu.NewMenu()

	fileMenu := appMenu.AddSubmenu("File")
	fileMenu.AddText("Sync Folder...", keys.CmdOrCtrl("o"), func(cd *menu.CallbackData) {
		if _, err := app.SyncDirectory(); err != nil {
			app.showError("Sync failed", err)
		}
	})
	fileMenu.AddText("Export Preview...", keys.CmdOrCtrl("e"), func(cd *menu.CallbackData) {
		if _, err := app.ExportPreview(); err != nil {
			app.showError("Export failed", err)
		}
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Reset Buffers", nil, func(cd *menu.CallbackData) {
		if err := app.Reset(); err != nil {
			app.showError("Reset failed", err)
		}
	})

	if goruntime.GOOS != "darwin" {
		fileMenu.AddSeparator()
		fileMenu.AddText("Exit", keys.OptionOrAlt("F4"), func(cd *menu.CallbackData) {
			runtime.Quit(app.ctx)
		})
	}

	if goruntime.GOOS == "darwin" {
		appMenu.Append(menu.EditMenu())
	}

	viewMenu := appMenu.AddSubmenu("View")
	viewMenu.AddText("Reload", keys.CmdOrCtrl("r"), func(cd *menu.CallbackData) {
		runtime.WindowReloadApp(app.ctx)
	})
	viewMenu.AddText("Toggle Full Screen", keys.CmdOrCtrl("shift+f"), func(cd *menu.CallbackData) {
		if runtime.WindowIsFullscreen(app.ctx) {
			runtime.WindowUnfullscreen(app.ctx)
		} else {
			runtime.WindowFullscreen(app.ctx)
		}
	})

	return appMenu
}
