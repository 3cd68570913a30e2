package certpdf

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-certificate/certificate"
)

const sceneSelector = "#certificate-canvas"

var sceneTemplate = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
html, body { margin: 0; padding: 0; background: transparent; }
#certificate-canvas { position: relative; overflow: hidden; width: {{ width }}px; height: {{ height }}px; background: {{ background }}; }
.node { position: absolute; transform-origin: top left; }
.text { white-space: pre-wrap; }
</style>
</head>
<body>
<div id="certificate-canvas">
{% for node in nodes %}{% if node.Kind == "text" %}<div class="node text" data-id="{{ node.ID }}" style="{{ node.Style }}">{{ node.Text }}</div>
{% elif node.Kind == "image" %}<img class="node" data-id="{{ node.ID }}" style="{{ node.Style }}" src="{{ node.Src }}" alt="">
{% endif %}{% endfor %}</div>
</body>
</html>`))

type sceneNode struct {
	Kind  string
	ID    string
	Text  string
	Src   string
	Style string
}

// SceneHTML renders a canvas scene as a standalone HTML page. The scene root
// is #certificate-canvas.
func SceneHTML(scene certificate.Scene) (string, error) {
	nodes := make([]sceneNode, 0, len(scene.Nodes))
	for _, node := range scene.Nodes {
		node.Accept(certificate.NodeFuncs{
			Text: func(n *certificate.TextNode) {
				nodes = append(nodes, sceneNode{Kind: "text", ID: n.ID, Text: n.Text, Style: textStyle(n)})
			},
			Image: func(n *certificate.ImageNode) {
				src := imageSource(n)
				if src == "" {
					return
				}
				nodes = append(nodes, sceneNode{Kind: "image", ID: n.ID, Src: src, Style: imageStyle(n)})
			},
			// shapes are not rendered
			Other: func(*certificate.OtherNode) {},
		})
	}

	background := scene.Background
	if background == "" {
		background = "#ffffff"
	}
	out, err := sceneTemplate.Execute(pongo2.Context{
		"width":      scene.Width,
		"height":     scene.Height,
		"background": background,
		"nodes":      nodes,
	})
	if err != nil {
		return "", certificate.NewError(certificate.KindInternal, "render scene html", err)
	}
	return out, nil
}

func imageSource(n *certificate.ImageNode) string {
	if len(n.Data) > 0 {
		contentType := n.ContentType
		if contentType == "" {
			contentType = "image/png"
		}
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(n.Data)
	}
	return n.Src
}

func transformStyle(t certificate.Transform) []string {
	return []string{
		"left:" + px(t.Left),
		"top:" + px(t.Top),
		fmt.Sprintf("transform:rotate(%sdeg) scale(%s,%s)", num(t.Angle), num(scaleOrOne(t.ScaleX)), num(scaleOrOne(t.ScaleY))),
	}
}

func textStyle(n *certificate.TextNode) string {
	parts := transformStyle(n.Transform)
	if n.Width > 0 {
		parts = append(parts, "width:"+px(n.Width))
	}
	if n.FontFamily != "" {
		parts = append(parts, "font-family:"+n.FontFamily)
	}
	if n.FontSize > 0 {
		parts = append(parts, "font-size:"+px(n.FontSize))
	}
	if n.FontWeight != "" {
		parts = append(parts, "font-weight:"+n.FontWeight)
	}
	if n.Fill != "" {
		parts = append(parts, "color:"+n.Fill)
	}
	if n.TextAlign != "" {
		parts = append(parts, "text-align:"+n.TextAlign)
	}
	return strings.Join(parts, ";")
}

func imageStyle(n *certificate.ImageNode) string {
	parts := transformStyle(n.Transform)
	if n.Width > 0 {
		parts = append(parts, "width:"+px(n.Width))
	}
	if n.Height > 0 {
		parts = append(parts, "height:"+px(n.Height))
	}
	return strings.Join(parts, ";")
}

func scaleOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func px(v float64) string {
	return num(v) + "px"
}
